package analysis

import (
	"github.com/nghyane/opsramp-reports/internal/config"
	"github.com/nghyane/opsramp-reports/internal/schedule"
)

const analysisPeriod = "Specific Period"

var resourceOptions = []string{"resource.id", "resource.name"}

// Payload is the JSON body of an analysis creation request.
type Payload struct {
	Parameters Parameters `json:"parameters"`
	Name       string     `json:"name"`
	TenantID   string     `json:"tenantId"`
	AppID      string     `json:"appId"`
	Format     []string   `json:"format"`
}

type Parameters struct {
	Method         []string     `json:"method"`
	EndTime        string       `json:"endTime"`
	Metrics        []string     `json:"metrics"`
	Options        []string     `json:"options"`
	StartTime      string       `json:"startTime"`
	OpsQLQuery     []OpsQLQuery `json:"opsqlQuery"`
	DisplayMode    string       `json:"displayMode"`
	QueryConfig    string       `json:"queryConfig"`
	AnalysisPeriod string       `json:"analysisPeriod"`
	Client         string       `json:"client"`
}

type OpsQLQuery struct {
	GroupBy        []string `json:"groupBy"`
	FilterCriteria string   `json:"filterCriteria"`
}

// BuildPayload assembles the creation body for one window.
func BuildPayload(cfg *config.Config, name string, w schedule.Window) Payload {
	return Payload{
		Parameters: Parameters{
			Method:    cfg.Report.Methods,
			EndTime:   schedule.FormatTimestamp(w.End),
			Metrics:   cfg.Report.Metrics,
			Options:   resourceOptions,
			StartTime: schedule.FormatTimestamp(w.Start),
			OpsQLQuery: []OpsQLQuery{{
				GroupBy:        []string{},
				FilterCriteria: cfg.Report.FilterCriteria,
			}},
			DisplayMode:    cfg.Report.DisplayMode,
			QueryConfig:    cfg.Report.QueryConfig,
			AnalysisPeriod: analysisPeriod,
			Client:         cfg.TenantID,
		},
		Name:     name,
		TenantID: cfg.TenantID,
		AppID:    cfg.Report.AppID,
		Format:   cfg.Report.ReportFormat,
	}
}
