package analysis

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/nghyane/opsramp-reports/internal/config"
	"github.com/nghyane/opsramp-reports/internal/json"
	"github.com/nghyane/opsramp-reports/internal/schedule"
)

// DryRunClient mirrors Client without touching the network. Every request
// is logged as it would have been sent.
type DryRunClient struct {
	cfg *config.Config
	log *log.Entry
}

func NewDryRunClient(cfg *config.Config, entry *log.Entry) *DryRunClient {
	if entry == nil {
		entry = log.NewEntry(log.StandardLogger())
	}
	return &DryRunClient{cfg: cfg, log: entry}
}

func (c *DryRunClient) Create(_ context.Context, _, name string, w schedule.Window) (Record, error) {
	body, err := json.MarshalIndent(BuildPayload(c.cfg, name, w), "", "  ")
	if err != nil {
		return Record{}, err
	}
	rec := Record{ID: "dry-run-" + uuid.NewString(), Name: name}
	c.log.WithFields(log.Fields{
		"url": c.cfg.AnalysesURL(),
		"id":  rec.ID,
	}).Infof("[dry-run] would POST analysis %s\n%s", name, body)
	return rec, nil
}

func (c *DryRunClient) Delete(_ context.Context, _, id string) (int, error) {
	c.log.WithField("url", c.cfg.AnalysisURL(id)).Infof("[dry-run] would DELETE analysis %s", id)
	return http.StatusNoContent, nil
}
