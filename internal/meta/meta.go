// Where: internal/meta/meta.go
// What: Project-wide metadata constants.
// Why: Keep names, defaults, and env keys in one place.
package meta

const (
	// Project Identity
	AppName   = "invoicectl"
	Slug      = "invoice-autorecord"
	EnvPrefix = "INVOICE"

	// Descriptor defaults
	DescriptorFile    = "stack.yaml"
	DefaultBucketName = "himawari-accounting"
	DefaultSuffix     = ".pdf"
	DefaultFunction   = "LedgerUpdater"
	DefaultRuntime    = "provided.al2023"
	DefaultHandler    = "bootstrap"
	DefaultCodeURI    = "dist/ledger-handler"

	// Ledger defaults
	LedgerCSVKey       = "取引情報訂正・削除申請書.csv"
	DefaultProcessor   = "自動処理システム"
	ProcessedTagKey    = "ledger-status"
	ProcessedTagValue  = "recorded"
	DefaultPolicyName  = "invoice-autorecord-bucket-access"
	DefaultAWSRegion   = "ap-northeast-1"
	DefaultLedgerTable = "invoice-ledger"
)
