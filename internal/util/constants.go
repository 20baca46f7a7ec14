package util

const DateFormat = "2006-01-02"

const (
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// AnonymousStudentID 请求未携带 student_id 时的占位值
const AnonymousStudentID = "ANON"

const MimeJSON = "application/json"

// RecentPapersLimit 试卷列表最多返回的条数
const RecentPapersLimit = 50
