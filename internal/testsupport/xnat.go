package testsupport

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/beevik/etree"
)

// Call is one request observed by FakeXNAT.
type Call struct {
	Name    string
	Session string
}

// FakeXNAT is an in-process stand-in for the XNAT session, SOAP, and
// document-fetch endpoints. Stored workflow documents are indexed by their ID
// attribute and exposed to search under a server-assigned primary key.
type FakeXNAT struct {
	Server   *httptest.Server
	Username string
	Password string

	mu        sync.Mutex
	nextToken int
	nextKey   int
	sessions  map[string]bool
	docs      map[string]string
	keysByID  map[string][]string
	stores    []string
	calls     []Call

	// Failure switches. Each applies to every matching request while set.
	FailLogin  bool
	FailSearch bool
	FailFetch  bool
	FailStore  bool
	FailClose  bool
}

// NewFakeXNAT starts a fake server and registers its shutdown with t.
func NewFakeXNAT(t testing.TB) *FakeXNAT {
	t.Helper()

	f := &FakeXNAT{
		Username: "pipeline",
		Password: "secret",
		sessions: make(map[string]bool),
		docs:     make(map[string]string),
		keysByID: make(map[string][]string),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/data/JSESSION", f.handleLogin)
	mux.HandleFunc("/axis/", f.handleAxis)
	mux.HandleFunc("/app/template/XMLSearch.vm/", f.handleFetch)
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the server base URL.
func (f *FakeXNAT) URL() string {
	return f.Server.URL
}

// Seed stores a workflow document as if a previous run had pushed it and
// returns its primary key.
func (f *FakeXNAT) Seed(document string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.putLocked(document)
}

// Stores returns every document pushed through StoreXML, in order.
func (f *FakeXNAT) Stores() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.stores...)
}

// Document returns the latest stored document for a workflow ID.
func (f *FakeXNAT) Document(id string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := f.keysByID[id]
	if len(keys) == 0 {
		return "", false
	}
	doc, ok := f.docs[keys[len(keys)-1]]
	return doc, ok
}

// Calls returns the observed request sequence.
func (f *FakeXNAT) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallNames returns the observed request names.
func (f *FakeXNAT) CallNames() []string {
	calls := f.Calls()
	names := make([]string, len(calls))
	for i, call := range calls {
		names[i] = call.Name
	}
	return names
}

// Set toggles failure switches under the server lock.
func (f *FakeXNAT) Set(fn func(*FakeXNAT)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *FakeXNAT) putLocked(document string) string {
	id := ""
	doc := etree.NewDocument()
	if err := doc.ReadFromString(document); err == nil && doc.Root() != nil {
		id = doc.Root().SelectAttrValue("ID", "")
	}
	keys := f.keysByID[id]
	if len(keys) > 0 {
		f.docs[keys[0]] = document
		return keys[0]
	}
	f.nextKey++
	key := strconv.Itoa(f.nextKey)
	f.docs[key] = document
	f.keysByID[id] = append(f.keysByID[id], key)
	return key
}

func (f *FakeXNAT) record(name, session string) {
	f.calls = append(f.calls, Call{Name: name, Session: session})
}

func (f *FakeXNAT) handleLogin(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("login", "")

	user, pass, ok := r.BasicAuth()
	if f.FailLogin || !ok || user != f.Username || pass != f.Password {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	f.nextToken++
	token := fmt.Sprintf("TOKEN%04d", f.nextToken)
	f.sessions[token] = true
	_, _ = io.WriteString(w, token)
}

func (f *FakeXNAT) sessionFrom(r *http.Request) (string, bool) {
	cookie, err := r.Cookie("JSESSIONID")
	if err != nil {
		return "", false
	}
	return cookie.Value, f.sessions[cookie.Value]
}

func (f *FakeXNAT) handleFetch(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessionFrom(r)
	f.record("fetch", session)
	if !ok {
		http.Error(w, "no session", http.StatusUnauthorized)
		return
	}
	if f.FailFetch {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/app/template/XMLSearch.vm/id/")
	key, _, _ := strings.Cut(rest, "/")
	doc, found := f.docs[key]
	if !found {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	_, _ = io.WriteString(w, doc)
}

func (f *FakeXNAT) handleAxis(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	endpoint := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/axis/"), ".jws")
	session, ok := f.sessionFrom(r)
	if r.Method == http.MethodGet {
		f.record("wsdl:"+endpoint, session)
		if !ok {
			http.Error(w, "no session", http.StatusUnauthorized)
			return
		}
		wsdl, known := fakeWSDL(f.Server.URL, endpoint)
		if !known {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/xml")
		_, _ = io.WriteString(w, wsdl)
		return
	}

	body, _ := io.ReadAll(r.Body)
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		writeFault(w, "soapenv:Client", "malformed envelope")
		return
	}
	soapBody := doc.FindElement("//Body")
	if soapBody == nil || len(soapBody.ChildElements()) == 0 {
		writeFault(w, "soapenv:Client", "missing operation")
		return
	}
	call := soapBody.ChildElements()[0]
	args := make([]string, 0, len(call.ChildElements()))
	for _, arg := range call.ChildElements() {
		args = append(args, arg.Text())
	}
	f.record(endpoint+"."+call.Tag, session)
	if !ok {
		writeFault(w, "soapenv:Server.userException", "invalid session")
		return
	}

	switch endpoint + "." + call.Tag {
	case "GetIdentifiers.search":
		if f.FailSearch || len(args) != 5 {
			writeFault(w, "soapenv:Server.userException", "search failed")
			return
		}
		writeSearchResult(w, f.keysByID[args[3]])
	case "StoreXML.store":
		if f.FailStore || len(args) != 4 {
			writeFault(w, "soapenv:Server.userException", "store rejected")
			return
		}
		f.stores = append(f.stores, args[1])
		f.putLocked(args[1])
		writeEmptyResult(w, "store")
	case "CloseServiceSession.execute":
		if f.FailClose {
			writeFault(w, "soapenv:Server.userException", "close failed")
			return
		}
		delete(f.sessions, session)
		writeEmptyResult(w, "execute")
	default:
		writeFault(w, "soapenv:Client", "unknown operation "+call.Tag)
	}
}

func writeSearchResult(w http.ResponseWriter, keys []string) {
	var items strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&items, `<item xsi:type="soapenc:string">%s</item>`, key)
	}
	w.Header().Set("Content-Type", "text/xml")
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" xmlns:xsd="http://www.w3.org/2001/XMLSchema" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
 <soapenv:Body>
  <ns1:searchResponse soapenv:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/" xmlns:ns1="http://localhost/axis/GetIdentifiers.jws">
   <searchReturn href="#id0"/>
  </ns1:searchResponse>
  <multiRef id="id0" soapenc:root="0" soapenv:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/" xsi:type="soapenc:Array" soapenc:arrayType="xsd:anyType[%d]" xmlns:soapenc="http://schemas.xmlsoap.org/soap/encoding/">%s</multiRef>
 </soapenv:Body>
</soapenv:Envelope>`, len(keys), items.String())
}

func writeEmptyResult(w http.ResponseWriter, operation string) {
	w.Header().Set("Content-Type", "text/xml")
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/">
 <soapenv:Body><ns1:%sResponse xmlns:ns1="urn:xnat"/></soapenv:Body>
</soapenv:Envelope>`, operation)
}

func writeFault(w http.ResponseWriter, code, message string) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusInternalServerError)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/">
 <soapenv:Body>
  <soapenv:Fault><faultcode>%s</faultcode><faultstring>%s</faultstring></soapenv:Fault>
 </soapenv:Body>
</soapenv:Envelope>`, code, message)
}

// fakeWSDL renders an Axis-style rpc/encoded WSDL. The advertised location
// deliberately points at a different host so clients must override it.
func fakeWSDL(base, endpoint string) (string, bool) {
	var (
		params []string
		op     string
		imp    string
	)
	switch endpoint {
	case "GetIdentifiers":
		op = "search"
		params = []string{"session_id", "field", "comparison", "value", "dataType"}
		imp = `<wsdl:types><schema xmlns="http://www.w3.org/2001/XMLSchema" targetNamespace="` + base + `/axis/GetIdentifiers.jws"><import namespace="http://schemas.xmlsoap.org/soap/encoding/"/></schema></wsdl:types>`
	case "StoreXML":
		op = "store"
		params = []string{"session_id", "xml", "allowDataDeletion", "allowItemOverwrite"}
	case "CloseServiceSession":
		op = "execute"
	default:
		return "", false
	}

	ns := base + "/axis/" + endpoint + ".jws"
	var parts strings.Builder
	for _, p := range params {
		fmt.Fprintf(&parts, `<wsdl:part name="%s" type="soapenc:string"/>`, p)
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<wsdl:definitions targetNamespace="%[1]s" xmlns:wsdl="http://schemas.xmlsoap.org/wsdl/" xmlns:wsdlsoap="http://schemas.xmlsoap.org/wsdl/soap/" xmlns:soapenc="http://schemas.xmlsoap.org/soap/encoding/" xmlns:impl="%[1]s">
 %[2]s
 <wsdl:message name="%[3]sRequest">%[4]s</wsdl:message>
 <wsdl:message name="%[3]sResponse"><wsdl:part name="%[3]sReturn" type="soapenc:string"/></wsdl:message>
 <wsdl:portType name="%[5]s">
  <wsdl:operation name="%[3]s" parameterOrder="%[6]s">
   <wsdl:input message="impl:%[3]sRequest" name="%[3]sRequest"/>
   <wsdl:output message="impl:%[3]sResponse" name="%[3]sResponse"/>
  </wsdl:operation>
 </wsdl:portType>
 <wsdl:binding name="%[5]sSoapBinding" type="impl:%[5]s">
  <wsdlsoap:binding style="rpc" transport="http://schemas.xmlsoap.org/soap/http"/>
  <wsdl:operation name="%[3]s">
   <wsdl:input name="%[3]sRequest"><wsdlsoap:body encodingStyle="http://schemas.xmlsoap.org/soap/encoding/" namespace="http://DefaultNamespace" use="encoded"/></wsdl:input>
  </wsdl:operation>
 </wsdl:binding>
 <wsdl:service name="%[5]sService">
  <wsdl:port binding="impl:%[5]sSoapBinding" name="%[5]s">
   <wsdlsoap:address location="http://xnat.internal:8080/axis/%[5]s.jws"/>
  </wsdl:port>
 </wsdl:service>
</wsdl:definitions>`, ns, imp, op, parts.String(), endpoint, strings.Join(params, " ")), true
}
