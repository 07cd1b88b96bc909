package xnat

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/beevik/etree"

	"xnatflow/internal/services"
)

type wsdlOperation struct {
	Name      string
	Namespace string
	Params    []string
}

type wsdlDefinition struct {
	targetNamespace string
	imports         map[string]bool
	location        string
	operations      map[string]wsdlOperation
}

func (c *Client) fetchWSDL(ctx context.Context, hc *http.Client, endpointURL, operation string) (*wsdlDefinition, error) {
	body, err := c.get(ctx, hc, endpointURL+"?wsdl", operation)
	if err != nil {
		return nil, err
	}
	def, err := parseWSDL(body)
	if err != nil {
		return nil, services.Wrap(services.ErrRPCTransport, component, operation, "decode wsdl", err)
	}
	return def, nil
}

func parseWSDL(data []byte) (*wsdlDefinition, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, err
	}
	root := doc.Root()
	if root == nil || root.Tag != "definitions" {
		return nil, fmt.Errorf("not a wsdl document")
	}

	def := &wsdlDefinition{
		targetNamespace: root.SelectAttrValue("targetNamespace", ""),
		imports:         make(map[string]bool),
		operations:      make(map[string]wsdlOperation),
	}

	for _, imp := range doc.FindElements("//import") {
		if ns := strings.TrimSpace(imp.SelectAttrValue("namespace", "")); ns != "" {
			def.imports[ns] = true
		}
	}

	messages := make(map[string][]string)
	for _, msg := range doc.FindElements("//message") {
		var parts []string
		for _, part := range msg.SelectElements("part") {
			parts = append(parts, part.SelectAttrValue("name", ""))
		}
		messages[msg.SelectAttrValue("name", "")] = parts
	}

	for _, op := range doc.FindElements("//portType/operation") {
		name := op.SelectAttrValue("name", "")
		entry := wsdlOperation{Name: name, Namespace: def.targetNamespace}
		if order := strings.Fields(op.SelectAttrValue("parameterOrder", "")); len(order) > 0 {
			entry.Params = order
		} else if input := op.SelectElement("input"); input != nil {
			entry.Params = messages[localName(input.SelectAttrValue("message", ""))]
		}
		def.operations[name] = entry
	}

	for _, op := range doc.FindElements("//binding/operation") {
		entry, ok := def.operations[op.SelectAttrValue("name", "")]
		if !ok {
			continue
		}
		if body := op.FindElement("input/body"); body != nil {
			if ns := body.SelectAttrValue("namespace", ""); ns != "" {
				entry.Namespace = ns
			}
		}
		def.operations[entry.Name] = entry
	}

	if addr := doc.FindElement("//service/port/address"); addr != nil {
		def.location = addr.SelectAttrValue("location", "")
	}
	return def, nil
}

// resolvable reports whether values of type t can be marshaled against this
// definition. XML Schema types always resolve; anything else needs an import,
// which schemaFix supplies for the SOAP encoding namespace.
func (d *wsdlDefinition) resolvable(t ArgType, schemaFix bool) bool {
	switch {
	case t.Namespace == NamespaceXSD:
		return true
	case t.Namespace == NamespaceSOAPEncoding && schemaFix:
		return true
	default:
		return d.imports[t.Namespace]
	}
}

func localName(qualified string) string {
	if idx := strings.LastIndexByte(qualified, ':'); idx >= 0 {
		return qualified[idx+1:]
	}
	return qualified
}
