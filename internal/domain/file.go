package domain

// FileRecord 描述一次扫描得到的文件（只做 stat，不读内容）。
//
// 不变量：
// - AbsPath 必须是 clean + absolute
// - Ext 已转为小写（".png"）
type FileRecord struct {
	AbsPath string
	RelPath string
	Base    string // filename without ext
	Ext     string
	Size    int64
}
