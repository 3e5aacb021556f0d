package domain

// Platform tags the external catalog a record came from. One tag per adapter.
type Platform string

const (
	PlatformN8N               Platform = "n8n"
	PlatformZapier            Platform = "zapier"
	PlatformMake              Platform = "make"
	PlatformPowerAutomate     Platform = "powerAutomate"
	PlatformIFTTT             Platform = "ifttt"
	PlatformAirtable          Platform = "airtable"
	PlatformAwesomeSelfhosted Platform = "awesomeSelfhosted"
	PlatformAwesomeN8N        Platform = "awesomeN8n"
	PlatformN8NCommunity      Platform = "n8nCommunity"
)

// DatasetName is the remote table holding this platform's records.
func (p Platform) DatasetName() string {
	return string(p) + "_data"
}

// Remote dataset names shared by all platforms.
const (
	RawDataset        = "raw_data"
	StatisticsDataset = "statistics"
)

// PlatformStatistics is one row of the statistics table. The table is
// recomputed and replaced in full on every run.
type PlatformStatistics struct {
	Platform   Platform
	Total      int // cumulative records known for the platform
	NewThisRun int
	Used       int // records incorporated into a published idea
	Unused     int // Total - Used
}

// StatisticsHeader is the remote statistics column order. The first two
// columns are always platform and total.
var StatisticsHeader = []string{"platform", "total", "new_this_run", "used", "unused"}
