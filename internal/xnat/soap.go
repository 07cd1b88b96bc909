package xnat

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"xnatflow/internal/logging"
	"xnatflow/internal/services"
)

const (
	NamespaceSOAPEnvelope = "http://schemas.xmlsoap.org/soap/envelope/"
	NamespaceSOAPEncoding = "http://schemas.xmlsoap.org/soap/encoding/"
	NamespaceXSD          = "http://www.w3.org/2001/XMLSchema"
	NamespaceXSI          = "http://www.w3.org/2001/XMLSchema-instance"
)

// ArgType is the declared wire type of an RPC argument.
type ArgType struct {
	Namespace string
	Name      string
}

var (
	EncString  = ArgType{Namespace: NamespaceSOAPEncoding, Name: "string"}
	EncBoolean = ArgType{Namespace: NamespaceSOAPEncoding, Name: "boolean"}
	XSDString  = ArgType{Namespace: NamespaceXSD, Name: "string"}
)

func (t ArgType) String() string {
	return t.qualified()
}

func (t ArgType) qualified() string {
	switch t.Namespace {
	case NamespaceSOAPEncoding:
		return "soapenc:" + t.Name
	case NamespaceXSD:
		return "xsd:" + t.Name
	default:
		return "ns2:" + t.Name
	}
}

// Arg is one typed RPC argument.
type Arg struct {
	Type  ArgType
	Value any
}

// String builds a SOAP-encoding string argument.
func String(value string) Arg { return Arg{Type: EncString, Value: value} }

// Bool builds a SOAP-encoding boolean argument.
func Bool(value bool) Arg { return Arg{Type: EncBoolean, Value: value} }

func (a Arg) text() string {
	switch v := a.Value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// FaultError is a protocol-level fault returned by the remote service.
type FaultError struct {
	Operation  string
	Code       string
	Message    string
	StatusCode int
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("%s: %s fault %s: %s", services.ErrRPCFault, e.Operation, e.Code, e.Message)
}

func (e *FaultError) Unwrap() error { return services.ErrRPCFault }

// Result is the decoded return value of an RPC call.
type Result struct {
	value *etree.Element
	body  *etree.Element
}

// IsNil reports whether the operation returned no value.
func (r *Result) IsNil() bool {
	return r == nil || r.value == nil || r.value.SelectAttrValue("xsi:nil", "") == "true"
}

// Text returns the scalar text of the returned value.
func (r *Result) Text() string {
	if r.IsNil() {
		return ""
	}
	return strings.TrimSpace(r.resolve(r.value).Text())
}

// Strings returns the items of an array result, or the scalar value as a
// single item.
func (r *Result) Strings() []string {
	if r.IsNil() {
		return nil
	}
	value := r.resolve(r.value)
	items := value.ChildElements()
	if len(items) == 0 {
		if text := strings.TrimSpace(value.Text()); text != "" {
			return []string{text}
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if text := strings.TrimSpace(r.resolve(item).Text()); text != "" {
			out = append(out, text)
		}
	}
	return out
}

// resolve follows Axis multiRef href indirections inside the SOAP body.
func (r *Result) resolve(el *etree.Element) *etree.Element {
	href := el.SelectAttrValue("href", "")
	if !strings.HasPrefix(href, "#") || r.body == nil {
		return el
	}
	id := strings.TrimPrefix(href, "#")
	for _, candidate := range r.body.ChildElements() {
		if candidate.SelectAttrValue("id", "") == id {
			return candidate
		}
	}
	return el
}

// Call issues one SOAP RPC against endpoint. The WSDL is fetched with the
// session cookie to resolve the operation's namespace and parameter names;
// schemaFix adds the SOAP encoding schema import the server's WSDL omits for
// some endpoints. The request always goes to the configured base URL.
func (c *Client) Call(ctx context.Context, session Session, endpoint, operation string, args []Arg, schemaFix bool) (*Result, error) {
	label := strings.TrimSuffix(endpoint, ".jws") + "." + operation
	if strings.TrimSpace(session.Token) == "" {
		return nil, services.Wrap(services.ErrAuthentication, component, label, "missing session token", nil)
	}

	target := c.endpointURL(endpoint)
	hc := c.sessionClient(session)

	def, err := c.fetchWSDL(ctx, hc, target, label)
	if err != nil {
		return nil, err
	}
	op, ok := def.operations[operation]
	if !ok {
		return nil, services.Wrap(services.ErrValidation, component, label, "operation not described by wsdl", nil)
	}
	if len(op.Params) > 0 && len(op.Params) != len(args) {
		return nil, services.Wrap(services.ErrValidation, component, label,
			fmt.Sprintf("expected %d arguments, got %d", len(op.Params), len(args)), nil)
	}
	for i, arg := range args {
		if !def.resolvable(arg.Type, schemaFix) {
			return nil, services.Wrap(services.ErrValidation, component, label,
				fmt.Sprintf("argument %d: type %s not found", i, arg.Type), nil)
		}
	}
	if def.location != "" && def.location != target {
		c.logger.Debug("overriding advertised service location",
			logging.String("advertised", def.location),
			logging.String("target", target))
	}

	envelope, err := buildEnvelope(op, args)
	if err != nil {
		return nil, services.Wrap(services.ErrRPCTransport, component, label, "encode envelope", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(envelope))
	if err != nil {
		return nil, services.Wrap(services.ErrRPCTransport, component, label, "build request", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", `""`)

	resp, err := hc.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrRPCTransport, component, label, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, services.Wrap(services.ErrRPCTransport, component, label, "read response", err)
	}
	return decodeResponse(label, resp.StatusCode, body)
}

func buildEnvelope(op wsdlOperation, args []Arg) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	env := doc.CreateElement("soapenv:Envelope")
	env.CreateAttr("xmlns:soapenv", NamespaceSOAPEnvelope)
	env.CreateAttr("xmlns:soapenc", NamespaceSOAPEncoding)
	env.CreateAttr("xmlns:xsd", NamespaceXSD)
	env.CreateAttr("xmlns:xsi", NamespaceXSI)

	body := env.CreateElement("soapenv:Body")
	call := body.CreateElement("ns1:" + op.Name)
	call.CreateAttr("soapenv:encodingStyle", NamespaceSOAPEncoding)
	call.CreateAttr("xmlns:ns1", op.Namespace)

	for i, arg := range args {
		name := fmt.Sprintf("arg%d", i)
		if i < len(op.Params) && op.Params[i] != "" {
			name = op.Params[i]
		}
		param := call.CreateElement(name)
		if arg.Type.Namespace != NamespaceXSD && arg.Type.Namespace != NamespaceSOAPEncoding {
			param.CreateAttr("xmlns:ns2", arg.Type.Namespace)
		}
		param.CreateAttr("xsi:type", arg.Type.qualified())
		param.SetText(arg.text())
	}
	return doc.WriteToBytes()
}

func decodeResponse(label string, status int, data []byte) (*Result, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		if status < 200 || status >= 300 {
			return nil, services.Wrap(services.ErrRPCTransport, component, label,
				fmt.Sprintf("unexpected status %d: %s", status, snippet(data)), nil)
		}
		return nil, services.Wrap(services.ErrRPCTransport, component, label, "decode response", err)
	}

	body := doc.FindElement("//Body")
	if body == nil {
		return nil, services.Wrap(services.ErrRPCTransport, component, label,
			fmt.Sprintf("response without soap body (status %d)", status), nil)
	}
	if fault := body.SelectElement("Fault"); fault != nil {
		return nil, &FaultError{
			Operation:  label,
			Code:       childText(fault, "faultcode"),
			Message:    childText(fault, "faultstring"),
			StatusCode: status,
		}
	}
	if status < 200 || status >= 300 {
		return nil, services.Wrap(services.ErrRPCTransport, component, label,
			fmt.Sprintf("unexpected status %d", status), nil)
	}

	result := &Result{body: body}
	if children := body.ChildElements(); len(children) > 0 {
		if values := children[0].ChildElements(); len(values) > 0 {
			result.value = values[0]
		}
	}
	return result, nil
}

func childText(el *etree.Element, tag string) string {
	if child := el.SelectElement(tag); child != nil {
		return strings.TrimSpace(child.Text())
	}
	return ""
}
