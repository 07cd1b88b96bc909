package workflowdoc

import (
	"strings"
	"time"

	"github.com/beevik/etree"
)

// NamespaceXSI is the XML Schema instance namespace.
const NamespaceXSI = "http://www.w3.org/2001/XMLSchema-instance"

// serverNamespaces is the declaration set the server's document validation
// expects on a workflow root.
var serverNamespaces = []struct{ prefix, uri string }{
	{"arc", "http://nrg.wustl.edu/arc"},
	{"val", "http://nrg.wustl.edu/val"},
	{"pipe", "http://nrg.wustl.edu/pipe"},
	{"wrk", "http://nrg.wustl.edu/workflow"},
	{"scr", "http://nrg.wustl.edu/scr"},
	{"xdat", "http://nrg.wustl.edu/security"},
	{"cat", "http://nrg.wustl.edu/catalog"},
	{"prov", "http://www.nbirn.net/prov"},
	{"xnat", "http://nrg.wustl.edu/xnat"},
	{"xnat_a", "http://nrg.wustl.edu/xnat_assessments"},
	{"xsi", NamespaceXSI},
}

var schemaLocations = []struct{ uri, path string }{
	{"http://nrg.wustl.edu/workflow", "schemas/pipeline/workflow.xsd"},
	{"http://nrg.wustl.edu/catalog", "schemas/catalog/catalog.xsd"},
	{"http://nrg.wustl.edu/pipe", "schemas/pipeline/repository.xsd"},
	{"http://nrg.wustl.edu/scr", "schemas/screening/screeningAssessment.xsd"},
	{"http://nrg.wustl.edu/arc", "schemas/project/project.xsd"},
	{"http://nrg.wustl.edu/val", "schemas/validation/protocolValidation.xsd"},
	{"http://nrg.wustl.edu/xnat", "schemas/xnat/xnat.xsd"},
	{"http://nrg.wustl.edu/xnat_assessments", "schemas/assessments/assessments.xsd"},
	{"http://www.nbirn.net/prov", "schemas/birn/birnprov.xsd"},
	{"http://nrg.wustl.edu/security", "schemas/security/security.xsd"},
}

// SynthesisInput carries the identity of a run that has no remote record yet.
type SynthesisInput struct {
	BaseURL      string
	PipelineName string
	ProjectName  string
	DataType     string
	RunID        string
	LaunchTime   time.Time
}

// Synthesize builds a fresh Running record at 0% from the run identity.
func Synthesize(in SynthesisInput) Record {
	launched := in.LaunchTime
	if launched.IsZero() {
		launched = time.Now()
	}
	stamp := launched.Format(TimeLayout)

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement(rootTag)
	root.CreateAttr(AttrDataType, in.DataType)
	root.CreateAttr(AttrID, in.RunID)
	root.CreateAttr(AttrExternalID, in.ProjectName)
	root.CreateAttr(AttrStepLaunchTime, stamp)
	root.CreateAttr(AttrStatus, string(StatusRunning))
	root.CreateAttr(AttrPipelineName, in.PipelineName)
	root.CreateAttr(AttrLaunchTime, stamp)
	root.CreateAttr(AttrPercent, FormatPercent(0))
	for _, ns := range serverNamespaces {
		root.CreateAttr("xmlns:"+ns.prefix, ns.uri)
	}
	root.CreateAttr("xsi:schemaLocation", schemaLocation(in.BaseURL))
	return Record{doc: doc}
}

func schemaLocation(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	pairs := make([]string, 0, len(schemaLocations))
	for _, loc := range schemaLocations {
		pairs = append(pairs, loc.uri+" "+base+"/"+loc.path)
	}
	return strings.Join(pairs, " ")
}
