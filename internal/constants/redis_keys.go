package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// MatchModulePrefix 匹配模块
	MatchModulePrefix = "match"

	// EntityStatus 摄入状态实体
	EntityStatus = "status"

	// KeyIngestionStatus 摄入状态 (STRING)
	// 格式: app:match:status:{namespace}:{recordID}
	KeyIngestionStatus = AppPrefix + ":" + MatchModulePrefix + ":" + EntityStatus + ":%s:%s"
)
