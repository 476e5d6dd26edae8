package soap

import "encoding/xml"

// intList and stringList mirror the WSUSP array encoding: a wrapper
// element containing one child per entry.
type intList struct {
	Values []int32 `xml:"int"`
}

type stringList struct {
	Values []string `xml:"string"`
}

// cookieXML is the wire shape of a client-presented cookie. The server
// never inspects its contents (spec.md §9: cookies are opaque and
// stateless), so both fields are decoded only to be discarded.
type cookieXML struct {
	Expiration    string `xml:"Expiration"`
	EncryptedData string `xml:"EncryptedData"`
}

type getCookieRequest struct {
	OldCookie       cookieXML `xml:"oldCookie"`
	LastChange      string    `xml:"lastChange"`
	LastSync        string    `xml:"lastSync"`
	CurrentTime     string    `xml:"currentTime"`
	ProtocolVersion string    `xml:"protocolVersion"`
}

type syncUpdatesParameters struct {
	ExpressQuery              bool    `xml:"ExpressQuery"`
	InstalledNonLeafUpdateIDs intList `xml:"InstalledNonLeafUpdateIDs"`
	OtherCachedUpdateIDs      intList `xml:"OtherCachedUpdateIDs"`
	SkipSoftwareSync          bool    `xml:"SkipSoftwareSync"`
	SkipDriverSync            bool    `xml:"SkipDriverSync"`
	TargetingInfo             string  `xml:"TargetingInfo"`
	ComputerSpec              string  `xml:"ComputerSpec"`
}

type syncUpdatesRequest struct {
	Cookie     cookieXML             `xml:"cookie"`
	Parameters syncUpdatesParameters `xml:"parameters"`
}

type getExtendedUpdateInfoRequest struct {
	Cookie      cookieXML  `xml:"cookie"`
	RevisionIDs intList    `xml:"revisionIDs"`
	InfoTypes   stringList `xml:"infoTypes"`
	Locales     stringList `xml:"locales"`
}

// clientRequestBody holds every possible ClientWebService operation as a
// pointer; exactly one is non-nil after unmarshaling a real request, and
// ClientHandler.ServeHTTP picks the handler by which field is set.
type clientRequestBody struct {
	GetConfig              *struct{}                     `xml:"GetConfig"`
	GetConfig2             *struct{}                     `xml:"GetConfig2"`
	GetCookie              *getCookieRequest             `xml:"GetCookie"`
	SyncUpdates            *syncUpdatesRequest           `xml:"SyncUpdates"`
	GetExtendedUpdateInfo  *getExtendedUpdateInfoRequest `xml:"GetExtendedUpdateInfo"`
	GetExtendedUpdateInfo2 *struct{}                     `xml:"GetExtendedUpdateInfo2"`
	GetFileLocations       *struct{}                     `xml:"GetFileLocations"`
	GetTimestamps          *struct{}                     `xml:"GetTimestamps"`
	RefreshCache           *struct{}                     `xml:"RefreshCache"`
	RegisterComputer       *struct{}                     `xml:"RegisterComputer"`
	StartCategoryScan      *struct{}                     `xml:"StartCategoryScan"`
	SyncPrinterCatalog     *struct{}                     `xml:"SyncPrinterCatalog"`
}

// parseClientBody unmarshals the raw <soap:Body> inner bytes by wrapping
// them in a synthetic root: Go's encoding/xml matches element tags by
// local name when the field tag carries no namespace, so this works
// regardless of the client's declared default namespace.
func parseClientBody(inner []byte) (*clientRequestBody, error) {
	wrapped := make([]byte, 0, len(inner)+20)
	wrapped = append(wrapped, []byte("<wrapper>")...)
	wrapped = append(wrapped, inner...)
	wrapped = append(wrapped, []byte("</wrapper>")...)

	var body clientRequestBody
	if err := xml.Unmarshal(wrapped, &struct {
		XMLName xml.Name `xml:"wrapper"`
		*clientRequestBody
	}{clientRequestBody: &body}); err != nil {
		return nil, err
	}
	return &body, nil
}
