package soap

import "net/http"

// StubHandler answers any SOAP request with a benign success envelope
// holding an empty <Operation>Response element named after the request's
// operation, logging the operation it was asked for. It backs SimpleAuthWebService and ReportingWebService
// (SPEC_FULL.md §4.14): both are named in the WSDL surface but carry no
// behavior this implementation's scope requires.
type StubHandler struct {
	service string
}

func NewStubHandler(service string) *StubHandler {
	return &StubHandler{service: service}
}

func (h *StubHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	inner, err := decodeBody(r.Body)
	if err != nil {
		writeFault(w, http.StatusBadRequest, "soap:Client", err.Error())
		return
	}

	op := operationName(inner)
	log.Info("stub SOAP operation acknowledged", "service", h.service, "operation", op)
	writeResult(w, "<"+op+"Response xmlns=\""+clientNS+"\"></"+op+"Response>")
}

// operationName extracts the local element name of the first tag in a raw
// XML fragment, used for the stub services' logging and to name their
// empty response element — a full parse isn't worth it when the response
// is always empty.
func operationName(inner []byte) string {
	start := -1
	for i, b := range inner {
		if b == '<' {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return "Unknown"
	}
	end := start
	for end < len(inner) {
		c := inner[end]
		if c == ' ' || c == '>' || c == '/' || c == '\t' || c == '\n' || c == '\r' {
			break
		}
		end++
	}
	if end <= start {
		return "Unknown"
	}
	return string(inner[start:end])
}
