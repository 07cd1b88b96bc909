package launch

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"xnatflow/internal/config"
	"xnatflow/internal/services"
	"xnatflow/internal/workflowdoc"
)

// RedactedPassword replaces the password in summaries.
const RedactedPassword = "********"

// Arguments is the launcher's fixed argument set.
type Arguments struct {
	Host         string
	User         string
	Password     string
	Pipeline     string
	Project      string
	DataType     string
	ID           string
	Label        string
	WorkflowID   string
	NotifyFlag   bool
	NotifyEmails []string
	// Extra carries any additional launcher arguments verbatim.
	Extra map[string]string
}

// values maps arguments onto the launcher's key names.
func (a Arguments) values() map[string]string {
	out := map[string]string{
		"host":          a.Host,
		"u":             a.User,
		"pwd":           a.Password,
		"pipeline":      a.Pipeline,
		"project":       a.Project,
		"dataType":      a.DataType,
		"id":            a.ID,
		"label":         a.Label,
		"notify_flag":   strconv.FormatBool(a.NotifyFlag),
		"notify_emails": strings.Join(a.NotifyEmails, ", "),
	}
	if a.WorkflowID != "" {
		out["workflowid"] = a.WorkflowID
	}
	for k, v := range a.Extra {
		if _, taken := out[k]; !taken {
			out[k] = v
		}
	}
	return out
}

// Run is everything one pipeline run needs from its launcher.
type Run struct {
	Arguments  Arguments
	Parameters Parameters
	// LogFile is the run's log location, or "" when output goes to the
	// terminal only.
	LogFile string
	// AdminEmails are site admin recipients added to every notification.
	AdminEmails []string
}

// RunID is the workflow record key: the explicit workflow id when given,
// otherwise the data item id.
func (r Run) RunID() string {
	if id := strings.TrimSpace(r.Arguments.WorkflowID); id != "" {
		return id
	}
	return strings.TrimSpace(r.Arguments.ID)
}

// Validate checks the arguments the tracker depends on.
func (r Run) Validate() error {
	var missing []string
	if strings.TrimSpace(r.Arguments.Host) == "" {
		missing = append(missing, "host")
	}
	if strings.TrimSpace(r.Arguments.User) == "" {
		missing = append(missing, "u")
	}
	if strings.TrimSpace(r.Arguments.Pipeline) == "" {
		missing = append(missing, "pipeline")
	}
	if r.RunID() == "" {
		missing = append(missing, "id")
	}
	if len(missing) > 0 {
		return services.Wrap(services.ErrValidation, "launch", "validate",
			"missing arguments: "+strings.Join(missing, ", "), nil)
	}
	if err := config.ValidateBaseURL(r.Arguments.Host); err != nil {
		return services.Wrap(services.ErrValidation, "launch", "validate", "host", err)
	}
	return nil
}

// Recipients returns the notify emails, the useremail and adminemail
// parameters, and the site admins, in that order. Duplicates are kept.
func (r Run) Recipients() []string {
	var out []string
	appendNonEmpty := func(values []string) {
		for _, v := range values {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	appendNonEmpty(r.Arguments.NotifyEmails)
	appendNonEmpty(r.Parameters.Get("useremail"))
	appendNonEmpty(r.Parameters.Get("adminemail"))
	appendNonEmpty(r.AdminEmails)
	return out
}

// DisplayName is a short label for subjects and log lines.
func (r Run) DisplayName() string {
	if label := strings.TrimSpace(r.Arguments.Label); label != "" {
		return label
	}
	return r.RunID()
}

// secretKey matches argument names whose values are redacted from summaries.
var secretKey = regexp.MustCompile(`(?i)pwd|pass|password|secret|token`)

// Summary renders the notification body: log location, sorted arguments with
// password-like values redacted, and sorted parameters.
func (r Run) Summary() string {
	var b strings.Builder
	if r.LogFile == "" {
		b.WriteString("no log file (output is stdout/stderr)\n")
	} else {
		fmt.Fprintf(&b, "log file: %s\n", r.LogFile)
	}

	b.WriteString("\narguments:\n\n")
	args := r.Arguments.values()
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		value := args[k]
		if secretKey.MatchString(k) {
			value = RedactedPassword
		}
		fmt.Fprintf(&b, "    %s = %s\n", k, value)
	}

	b.WriteString("\nparameters:\n\n")
	params := append(Parameters(nil), r.Parameters...)
	sort.SliceStable(params, func(i, j int) bool { return params[i].Name < params[j].Name })
	for _, p := range params {
		fmt.Fprintf(&b, "    %s = %s\n", p.Name, strings.Join(p.Values, ", "))
	}
	return b.String()
}

// Environment builds the execution environment block for the tracker.
func (r Run) Environment() workflowdoc.Environment {
	params := make([]workflowdoc.Parameter, 0, len(r.Parameters))
	for _, p := range r.Parameters {
		params = append(params, workflowdoc.Parameter{Name: p.Name, Values: append([]string(nil), p.Values...)})
	}
	return workflowdoc.Environment{
		Pipeline:     r.Arguments.Pipeline,
		User:         r.Arguments.User,
		Host:         r.Arguments.Host,
		Parameters:   params,
		NotifyEmails: append([]string(nil), r.Arguments.NotifyEmails...),
		DataType:     r.Arguments.DataType,
		ID:           r.Arguments.ID,
		Notify:       r.Arguments.NotifyFlag,
	}
}

// SynthesisInput builds the identity used when no remote record exists.
func (r Run) SynthesisInput() workflowdoc.SynthesisInput {
	return workflowdoc.SynthesisInput{
		BaseURL:      r.Arguments.Host,
		PipelineName: r.Arguments.Pipeline,
		ProjectName:  r.Arguments.Project,
		DataType:     r.Arguments.DataType,
		RunID:        r.RunID(),
	}
}
