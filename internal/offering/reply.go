package offering

// Deployment action literals and ID constants. These are protocol-
// observable per spec.md §6 — never parameterize them away.
const (
	ActionEvaluate = "Evaluate"
	ActionInstall  = "Install"
	ActionBundle   = "Bundle"

	DeploymentIDNonLeaf        = 15000
	DeploymentIDBundle         = 20000
	DeploymentIDBundled        = 20001
	DeploymentIDStandalone     = 20002

	deploymentSupersedenceBehavior = "0"
	deploymentAutoDownload         = "0"
	deploymentAutoSelect           = "0"
	// lastChangeTime is a literal constant observed in the upstream
	// protocol, not a real timestamp.
	lastChangeTime = "2019-08-06"

	// MaxUpdatesInResponse is the number of updates actually sent to the
	// client per reply. Phases collect one extra item (51) solely to
	// detect truncation (spec.md §4.4).
	MaxUpdatesInResponse = 50
	phaseCollectLimit    = MaxUpdatesInResponse + 1
)

// Deployment carries the per-update deployment directive.
type Deployment struct {
	Action                string
	ID                    int
	AutoDownload          string
	AutoSelect            string
	SupersedenceBehavior  string
	IsAssigned            bool
	LastChangeTime        string
}

func newDeployment(action string, id int) Deployment {
	return Deployment{
		Action:               action,
		ID:                   id,
		AutoDownload:         deploymentAutoDownload,
		AutoSelect:           deploymentAutoSelect,
		SupersedenceBehavior: deploymentSupersedenceBehavior,
		IsAssigned:           true,
		LastChangeTime:       lastChangeTime,
	}
}

// UpdateInfo is one emitted offer.
type UpdateInfo struct {
	ID           int32
	IsLeaf       bool
	IsShared     bool
	Verification *string
	Xml          string
	Deployment   Deployment
}

// SyncInfo is the full SyncUpdates reply.
type SyncInfo struct {
	NewCookie           Cookie
	DriverSyncNotNeeded string
	Truncated           bool
	NewUpdates          []UpdateInfo
}

func skipSyncReply() SyncInfo {
	return SyncInfo{
		NewCookie:           NewCookie(),
		DriverSyncNotNeeded: "false",
		Truncated:           false,
	}
}
