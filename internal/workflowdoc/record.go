package workflowdoc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"

	"xnatflow/internal/services"
)

const (
	// TimeLayout is the local-time layout the server expects for timestamps.
	TimeLayout = "2006-01-02T15:04:05"

	rootTag   = "wrk:Workflow"
	component = "workflowdoc"
)

const (
	AttrID             = "ID"
	AttrDataType       = "data_type"
	AttrExternalID     = "ExternalID"
	AttrPipelineName   = "pipeline_name"
	AttrStatus         = "status"
	AttrCurrentStepID  = "current_step_id"
	AttrStepDesc       = "step_description"
	AttrPercent        = "percentageComplete"
	AttrStepLaunchTime = "current_step_launch_time"
	AttrLaunchTime     = "launch_time"
)

var (
	// ErrNotWorkflow reports a document without a workflow element.
	ErrNotWorkflow = errors.New("document has no wrk:Workflow element")
	// ErrEnvironmentSet reports a second attempt to write the environment
	// block.
	ErrEnvironmentSet = errors.New("execution environment already set")
)

// Record is an immutable workflow document.
type Record struct {
	doc *etree.Document
}

// Parse builds a Record from a fetched document. The first wrk:Workflow
// element anywhere in the tree is the workflow node.
func Parse(data []byte) (Record, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return Record{}, services.Wrap(services.ErrValidation, component, "parse", "decode xml", err)
	}
	if doc.FindElement("//"+rootTag) == nil {
		return Record{}, services.Wrap(services.ErrValidation, component, "parse", "", ErrNotWorkflow)
	}
	return Record{doc: doc}, nil
}

// IsZero reports whether r holds no document.
func (r Record) IsZero() bool {
	return r.doc == nil
}

func (r Record) workflow() *etree.Element {
	if r.doc == nil {
		return nil
	}
	return r.doc.FindElement("//" + rootTag)
}

// mutate copies the document and applies fn to the copied workflow node.
func (r Record) mutate(fn func(*etree.Element)) Record {
	if r.doc == nil {
		return r
	}
	next := Record{doc: r.doc.Copy()}
	fn(next.workflow())
	return next
}

// Attr returns the raw value of a workflow attribute.
func (r Record) Attr(name string) (string, bool) {
	node := r.workflow()
	if node == nil {
		return "", false
	}
	attr := node.SelectAttr(name)
	if attr == nil {
		return "", false
	}
	return attr.Value, true
}

func (r Record) attr(name string) string {
	value, _ := r.Attr(name)
	return value
}

func (r Record) ID() string              { return r.attr(AttrID) }
func (r Record) DataType() string        { return r.attr(AttrDataType) }
func (r Record) ExternalID() string      { return r.attr(AttrExternalID) }
func (r Record) PipelineName() string    { return r.attr(AttrPipelineName) }
func (r Record) PercentComplete() string { return r.attr(AttrPercent) }
func (r Record) StepLaunchTime() string  { return r.attr(AttrStepLaunchTime) }
func (r Record) LaunchTime() string      { return r.attr(AttrLaunchTime) }

// Status returns the parsed status attribute.
func (r Record) Status() Status {
	return ParseStatus(r.attr(AttrStatus))
}

// CurrentStepID returns the current step label, if any.
func (r Record) CurrentStepID() (string, bool) {
	return r.Attr(AttrCurrentStepID)
}

// StepDescription returns the current step description, if any.
func (r Record) StepDescription() (string, bool) {
	return r.Attr(AttrStepDesc)
}

// HasEnvironment reports whether the execution environment block is present.
func (r Record) HasEnvironment() bool {
	node := r.workflow()
	return node != nil && node.SelectElement(environmentTag) != nil
}

// WithStatus returns a copy with the status attribute replaced.
func (r Record) WithStatus(status Status) Record {
	return r.mutate(func(node *etree.Element) {
		node.CreateAttr(AttrStatus, string(status))
	})
}

// WithStepLaunchTime stamps the current step launch time.
func (r Record) WithStepLaunchTime(at time.Time) Record {
	return r.mutate(func(node *etree.Element) {
		node.CreateAttr(AttrStepLaunchTime, at.Format(TimeLayout))
	})
}

// WithProgress sets the current step label, description, and percent.
func (r Record) WithProgress(stepID, description string, percent float64) Record {
	return r.mutate(func(node *etree.Element) {
		node.CreateAttr(AttrCurrentStepID, stepID)
		node.CreateAttr(AttrStepDesc, description)
		node.CreateAttr(AttrPercent, FormatPercent(percent))
	})
}

// WithPercent sets only the percent attribute.
func (r Record) WithPercent(percent float64) Record {
	return r.mutate(func(node *etree.Element) {
		node.CreateAttr(AttrPercent, FormatPercent(percent))
	})
}

// WithStepDescription sets only the step description.
func (r Record) WithStepDescription(description string) Record {
	return r.mutate(func(node *etree.Element) {
		node.CreateAttr(AttrStepDesc, description)
	})
}

// WithoutCurrentStep removes the step label and description. Absence, not an
// empty value, means "no current step".
func (r Record) WithoutCurrentStep() Record {
	return r.mutate(func(node *etree.Element) {
		node.RemoveAttr(AttrCurrentStepID)
		node.RemoveAttr(AttrStepDesc)
	})
}

// WithoutEnvironment removes an existing execution environment block.
func (r Record) WithoutEnvironment() Record {
	if !r.HasEnvironment() {
		return r
	}
	return r.mutate(func(node *etree.Element) {
		for _, block := range node.SelectElements(environmentTag) {
			node.RemoveChild(block)
		}
	})
}

// WithEnvironment appends the execution environment block. It fails if the
// block is already present.
func (r Record) WithEnvironment(env Environment) (Record, error) {
	if r.doc == nil {
		return r, services.Wrap(services.ErrValidation, component, "set environment", "empty record", nil)
	}
	if r.HasEnvironment() {
		return r, services.Wrap(services.ErrValidation, component, "set environment", "", ErrEnvironmentSet)
	}
	next := r.mutate(func(node *etree.Element) {
		if !declaresXSI(node) {
			node.CreateAttr("xmlns:xsi", NamespaceXSI)
		}
		env.render(node)
	})
	return next, nil
}

// Serialize renders the document with an XML declaration.
func (r Record) Serialize() (string, error) {
	if r.doc == nil {
		return "", services.Wrap(services.ErrValidation, component, "serialize", "empty record", nil)
	}
	out := r.doc.Copy()
	if !hasDeclaration(out) {
		out.InsertChildAt(0, etree.NewProcInst("xml", `version="1.0" encoding="UTF-8"`))
	}
	text, err := out.WriteToString()
	if err != nil {
		return "", services.Wrap(services.ErrValidation, component, "serialize", "encode xml", err)
	}
	return text, nil
}

func hasDeclaration(doc *etree.Document) bool {
	for _, tok := range doc.Child {
		if pi, ok := tok.(*etree.ProcInst); ok && pi.Target == "xml" {
			return true
		}
	}
	return false
}

func declaresXSI(node *etree.Element) bool {
	for el := node; el != nil; el = el.Parent() {
		if el.SelectAttr("xmlns:xsi") != nil {
			return true
		}
	}
	return false
}

// FormatPercent renders a percentage the way the server stores it: shortest
// decimal form with at least one fractional digit ("10.0", "33.5").
func FormatPercent(percent float64) string {
	text := strconv.FormatFloat(percent, 'f', -1, 64)
	if !strings.Contains(text, ".") {
		text += ".0"
	}
	return text
}

// ParsePercent reads a stored percentage value.
func ParsePercent(raw string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("parse percent %q: %w", raw, err)
	}
	return value, nil
}
