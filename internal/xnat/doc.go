// Package xnat talks to the XNAT record-keeping service.
//
// It covers the three wire concerns the workflow tracker needs: obtaining a
// fresh JSESSION token for the configured identity, issuing SOAP RPC/encoded
// calls against the Axis JWS endpoints (GetIdentifiers, StoreXML,
// CloseServiceSession), and fetching workflow documents through the XML
// search template. Every request made on behalf of one call carries the
// session token as a JSESSIONID cookie, and every call is posted to the
// configured base URL regardless of the location the server advertises in its
// WSDL, so servers behind reverse proxies keep working.
//
// Failures are tagged with the services error markers: login problems with
// ErrAuthentication, network or HTTP problems with ErrRPCTransport, and SOAP
// faults with ErrRPCFault (as *FaultError). Callers decide which of those to
// downgrade.
package xnat
