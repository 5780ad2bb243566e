// Where: internal/infra/sam/template.go
// What: Render the stack descriptor as an AWS SAM template.
// Why: Hand the deployment tool a template derived from the same data the tests validate.
package sam

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/poruru-code/invoice-autorecord/internal/domain/stack"
	"github.com/poruru-code/invoice-autorecord/internal/infra/config"
	"github.com/poruru-code/invoice-autorecord/internal/infra/ledger"
	"gopkg.in/yaml.v3"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const templateName = "template.yaml.tmpl"

var (
	templateOnce sync.Once
	templateErr  error
	samTemplate  *template.Template
)

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]`)

type templateData struct {
	stack.Stack
	FunctionID       string
	Bucket           string
	Environment      map[string]any
	PolicyJSON       string
	LedgerPolicyJSON string
	LedgerKeyAttr    string
	DeadLetterType   string
}

// Render produces the SAM template for st. The descriptor is normalized and
// validated first; the output is checked to be well-formed YAML.
func Render(st stack.Stack) ([]byte, error) {
	st = st.Normalize()
	if err := st.Validate(); err != nil {
		return nil, err
	}
	policy, err := st.Grant.Policy(st.Bucket)
	if err != nil {
		return nil, err
	}
	policyJSON, err := json.Marshal(policy)
	if err != nil {
		return nil, fmt.Errorf("encode policy: %w", err)
	}
	data := templateData{
		Stack:          st,
		FunctionID:     LogicalID(st.Function.Name),
		Bucket:         st.Bucket.Name,
		Environment:    toAny(config.RuntimeEnvironment(st)),
		PolicyJSON:     string(policyJSON),
		LedgerKeyAttr:  ledger.AttrSourceKey,
		DeadLetterType: DestinationType(st.Delivery.DeadLetterARN),
	}
	if st.Ledger.Backend == stack.LedgerBackendDynamoDB {
		raw, err := json.Marshal(LedgerTablePolicy(st.Ledger.Table))
		if err != nil {
			return nil, fmt.Errorf("encode ledger policy: %w", err)
		}
		data.LedgerPolicyJSON = string(raw)
	}

	tmpl, err := loadTemplate()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	var check map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &check); err != nil {
		return nil, fmt.Errorf("rendered template is not valid yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// LedgerTablePolicy grants the handler what the DynamoDB ledger store calls.
// There is no delete here either.
func LedgerTablePolicy(table string) stack.PolicyDocument {
	return stack.PolicyDocument{
		Version: stack.PolicyVersion,
		Statement: []stack.Statement{{
			Sid:    "LedgerTable",
			Effect: "Allow",
			Action: []string{"dynamodb:PutItem", "dynamodb:Scan"},
			Resource: []string{
				fmt.Sprintf("arn:aws:dynamodb:*:*:table/%s", table),
			},
		}},
	}
}

// LogicalID turns a function name into a CloudFormation logical id.
func LogicalID(name string) string {
	id := nonAlnum.ReplaceAllString(name, "")
	if id == "" {
		return "LedgerHandler"
	}
	return strings.ToUpper(id[:1]) + id[1:]
}

// DestinationType maps a dead-letter ARN to its EventInvokeConfig type.
func DestinationType(arn string) string {
	parts := strings.SplitN(arn, ":", 4)
	if len(parts) < 3 {
		return "SQS"
	}
	switch parts[2] {
	case "sns":
		return "SNS"
	case "lambda":
		return "Lambda"
	case "events":
		return "EventBridge"
	default:
		return "SQS"
	}
}

// toAny converts for sprig's keys, which only accepts map[string]any.
func toAny(in map[string]string) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func loadTemplate() (*template.Template, error) {
	templateOnce.Do(func() {
		samTemplate, templateErr = template.New(templateName).
			Funcs(sprig.TxtFuncMap()).
			ParseFS(templateFS, "templates/"+templateName)
	})
	return samTemplate, templateErr
}
