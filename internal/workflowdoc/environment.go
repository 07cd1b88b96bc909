package workflowdoc

import "github.com/beevik/etree"

// Parameter is one named pipeline parameter with its ordered values.
type Parameter struct {
	Name   string
	Values []string
}

// Environment is the execution environment block written once per run.
type Environment struct {
	Pipeline     string
	User         string
	Host         string
	Parameters   []Parameter
	NotifyEmails []string
	DataType     string
	ID           string
	Notify       bool
}

const environmentTag = "wrk:executionEnvironment"

// render appends the environment block under parent. Element order matters
// to the server's schema validation.
func (env Environment) render(parent *etree.Element) {
	block := parent.CreateElement(environmentTag)
	block.CreateAttr("xsi:type", "wrk:xnatExecutionEnvironment")

	appendText(block, "wrk:pipeline", env.Pipeline)
	appendText(block, "wrk:xnatuser", env.User)
	appendText(block, "wrk:host", env.Host)

	params := block.CreateElement("wrk:parameters")
	for _, param := range env.Parameters {
		node := params.CreateElement("wrk:parameter")
		node.CreateAttr("name", param.Name)
		for _, value := range param.Values {
			node.CreateText(value)
		}
	}

	for _, email := range env.NotifyEmails {
		appendText(block, "wrk:notify", email)
	}
	appendText(block, "wrk:dataType", env.DataType)
	appendText(block, "wrk:id", env.ID)
	if env.Notify {
		appendText(block, "wrk:supressNotification", "0")
	} else {
		appendText(block, "wrk:supressNotification", "1")
	}
}

func appendText(parent *etree.Element, tag, value string) {
	parent.CreateElement(tag).CreateText(value)
}
