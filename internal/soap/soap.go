// Package soap implements the SOAP/HTTP transport (SPEC_FULL.md §4.14):
// a thin façade over stdlib encoding/xml dispatching the five implemented
// operations (GetConfig, GetConfig2, GetCookie, SyncUpdates,
// GetExtendedUpdateInfo) onto the core engines, matching spec.md's own
// framing of the Metadata Fragmenter as "a thin façade over a shared XML
// transformer" — no SOAP toolkit exists anywhere in the reference corpus.
package soap

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"

	"github.com/wsusd/wsusd/internal/logging"
)

var log = logging.L("soap")

const (
	soapEnvelopeNS  = "http://schemas.xmlsoap.org/soap/envelope/"
	soapContentType = "text/xml; charset=utf-8"
)

// envelope decodes only as much of an incoming SOAP 1.1 request as every
// operation shares: the raw bytes of the single child element of Body.
type envelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Inner []byte `xml:",innerxml"`
	} `xml:"Body"`
}

// decodeBody extracts the inner bytes of <soap:Body>…</soap:Body> from an
// HTTP request without committing to any one operation's schema.
func decodeBody(r io.Reader) ([]byte, error) {
	var env envelope
	if err := xml.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode SOAP envelope: %w", err)
	}
	return env.Body.Inner, nil
}

// writeResult wraps a pre-rendered response-operation XML fragment in a
// SOAP envelope and writes it with a 200 status.
func writeResult(w http.ResponseWriter, bodyXML string) {
	w.Header().Set("Content-Type", soapContentType)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="utf-8"?>`+"\n"+
		`<soap:Envelope xmlns:soap=%q><soap:Body>%s</soap:Body></soap:Envelope>`,
		soapEnvelopeNS, bodyXML)
}

// writeFault wraps a SOAP 1.1 fault in an envelope. The caller picks
// httpStatus (400 for malformed requests, 501 for unimplemented
// operations, 503 with no published catalog, 500 otherwise); the real
// error is carried in the body.
func writeFault(w http.ResponseWriter, httpStatus int, code, message string) {
	w.Header().Set("Content-Type", soapContentType)
	w.WriteHeader(httpStatus)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="utf-8"?>`+"\n"+
		`<soap:Envelope xmlns:soap=%q><soap:Body><soap:Fault><faultcode>%s</faultcode><faultstring>%s</faultstring></soap:Fault></soap:Body></soap:Envelope>`,
		soapEnvelopeNS, xmlEscape(code), xmlEscape(message))
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
