package offering

import (
	"github.com/wsusd/wsusd/internal/catalog"
	"github.com/wsusd/wsusd/internal/fragment"
)

// encodeNonLeaf implements the non-leaf encoder (spec.md §4.4.1) for
// phases A and B. Candidates beyond MaxUpdatesInResponse are dropped; the
// caller only ever passes up to phaseCollectLimit candidates in, and the
// extra one (if present) is discarded here without affecting Truncated,
// which phases A/B/C set unconditionally when non-empty.
func encodeNonLeaf(candidates []nonLeafCandidate, idx *catalog.Indices, fr *fragment.Fragmenter) []UpdateInfo {
	if len(candidates) > MaxUpdatesInResponse {
		candidates = candidates[:MaxUpdatesInResponse]
	}

	out := make([]UpdateInfo, 0, len(candidates))
	for _, c := range candidates {
		core, err := fr.Core(c.update)
		if err != nil {
			log.Warn("skipping update with unreadable metadata", "identity", c.id, "error", err)
			continue
		}
		rev := idx.IdToLatestRevision[c.id.ID]
		out = append(out, UpdateInfo{
			ID:         rev,
			IsLeaf:     false,
			IsShared:   false,
			Xml:        core,
			Deployment: newDeployment(ActionEvaluate, DeploymentIDNonLeaf),
		})
	}
	return out
}

// encodeSoftware implements the software encoder (spec.md §4.4.2) for
// phases C and D. Candidates beyond MaxUpdatesInResponse are dropped; phase
// D already caps its own list before calling in, but phase C's bundle
// collection does not, so the cap is enforced here too.
func encodeSoftware(candidates []softwareCandidate, idx *catalog.Indices, fr *fragment.Fragmenter) []UpdateInfo {
	if len(candidates) > MaxUpdatesInResponse {
		candidates = candidates[:MaxUpdatesInResponse]
	}

	out := make([]UpdateInfo, 0, len(candidates))
	for _, c := range candidates {
		core, err := fr.Core(c.update)
		if err != nil {
			log.Warn("skipping update with unreadable metadata", "identity", c.id, "error", err)
			continue
		}
		rev := idx.IdToLatestRevision[c.id.ID]

		var action string
		var deploymentID int
		switch {
		case c.update.IsBundle():
			action = ActionInstall
			deploymentID = DeploymentIDBundle
		case c.update.IsBundled():
			action = ActionBundle
			deploymentID = DeploymentIDBundled
		default:
			action = ActionInstall
			deploymentID = DeploymentIDStandalone
		}

		out = append(out, UpdateInfo{
			ID:         rev,
			IsLeaf:     true,
			IsShared:   false,
			Xml:        core,
			Deployment: newDeployment(action, deploymentID),
		})
	}
	return out
}
