package soap

import (
	"fmt"
	"strings"
	"time"

	"github.com/wsusd/wsusd/internal/extendedinfo"
	"github.com/wsusd/wsusd/internal/offering"
)

const clientNS = "http://www.microsoft.com/SoftwareDistribution"

func cookieXMLOf(c offering.Cookie) string {
	return fmt.Sprintf(`<NewCookie><Expiration>%s</Expiration><EncryptedData>%x</EncryptedData></NewCookie>`,
		c.Expiration.UTC().Format(time.RFC3339), c.EncryptedData[:])
}

func renderSyncUpdatesResult(info offering.SyncInfo) string {
	var b strings.Builder
	b.WriteString(`<SyncUpdatesResponse xmlns="` + clientNS + `"><SyncUpdatesResult>`)
	b.WriteString(cookieXMLOf(info.NewCookie))
	fmt.Fprintf(&b, `<DriverSyncNotNeeded>%s</DriverSyncNotNeeded>`, info.DriverSyncNotNeeded)
	fmt.Fprintf(&b, `<Truncated>%t</Truncated>`, info.Truncated)
	b.WriteString(`<NewUpdates>`)
	for _, u := range info.NewUpdates {
		renderUpdateInfo(&b, u)
	}
	b.WriteString(`</NewUpdates>`)
	b.WriteString(`</SyncUpdatesResult></SyncUpdatesResponse>`)
	return b.String()
}

func renderUpdateInfo(b *strings.Builder, u offering.UpdateInfo) {
	fmt.Fprintf(b, `<UpdateInfo><ID>%d</ID><IsLeaf>%t</IsLeaf><IsShared>%t</IsShared>`, u.ID, u.IsLeaf, u.IsShared)
	if u.Verification != nil {
		fmt.Fprintf(b, `<Verification>%s</Verification>`, xmlEscape(*u.Verification))
	}
	fmt.Fprintf(b, `<Deployment><Action>%s</Action><ID>%d</ID><AutoDownload>%s</AutoDownload><AutoSelect>%s</AutoSelect><SupersedenceBehavior>%s</SupersedenceBehavior><IsAssigned>%t</IsAssigned><LastChangeTime>%s</LastChangeTime></Deployment>`,
		u.Deployment.Action, u.Deployment.ID, u.Deployment.AutoDownload, u.Deployment.AutoSelect,
		u.Deployment.SupersedenceBehavior, u.Deployment.IsAssigned, u.Deployment.LastChangeTime)
	b.WriteString(`<Xml>`)
	b.WriteString(u.Xml)
	b.WriteString(`</Xml>`)
	b.WriteString(`</UpdateInfo>`)
}

func renderGetCookieResult(c offering.Cookie) string {
	return `<GetCookieResponse xmlns="` + clientNS + `"><GetCookieResult>` + cookieXMLOf(c) + `</GetCookieResult></GetCookieResponse>`
}

func renderGetConfigResult(op string, cfg extendedinfo.Config) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<%sResponse xmlns="%s"><%sResult>`, op, clientNS, op)
	fmt.Fprintf(&b, `<LastChange>%s</LastChange>`, cfg.LastChange.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, `<IsRegistrationRequired>%t</IsRegistrationRequired>`, cfg.IsRegistrationRequired)
	b.WriteString(`<AllowedEventIds>`)
	for _, id := range cfg.AllowedEventIds {
		fmt.Fprintf(&b, `<int>%d</int>`, id)
	}
	b.WriteString(`</AllowedEventIds>`)
	b.WriteString(`<AuthPlugInInfo>`)
	for _, p := range cfg.AuthPlugInInfo {
		fmt.Fprintf(&b, `<AuthPlugInInfo><PlugInID>%s</PlugInID><ServiceUrl>%s</ServiceUrl><Parameter>%s</Parameter></AuthPlugInInfo>`,
			xmlEscape(p.PlugInID), xmlEscape(p.ServiceUrl), xmlEscape(p.Parameter))
	}
	b.WriteString(`</AuthPlugInInfo>`)
	fmt.Fprintf(&b, `</%sResult></%sResponse>`, op, op)
	return b.String()
}

func renderGetExtendedUpdateInfoResult(info extendedinfo.ExtendedUpdateInfo) string {
	var b strings.Builder
	b.WriteString(`<GetExtendedUpdateInfoResponse xmlns="` + clientNS + `"><GetExtendedUpdateInfoResult>`)
	b.WriteString(`<Updates>`)
	for _, u := range info.Updates {
		fmt.Fprintf(&b, `<UpdateData><ID>%d</ID><Xml>%s</Xml></UpdateData>`, u.ID, u.Xml)
	}
	b.WriteString(`</Updates>`)
	b.WriteString(`<FileLocations>`)
	for _, f := range info.FileLocations {
		fmt.Fprintf(&b, `<FileLocation><FileDigest>%s</FileDigest><Url>%s</Url></FileLocation>`,
			hexDigest(f.FileDigest), xmlEscape(f.Url))
	}
	b.WriteString(`</FileLocations>`)
	b.WriteString(`</GetExtendedUpdateInfoResult></GetExtendedUpdateInfoResponse>`)
	return b.String()
}

func hexDigest(b []byte) string {
	return fmt.Sprintf("%x", b)
}
