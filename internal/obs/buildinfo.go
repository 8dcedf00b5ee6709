package obs

import "github.com/prometheus/client_golang/prometheus"

var buildInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build information of the running binary.",
	},
	[]string{"version", "commit"},
)

// SetBuildInfo publishes build_info{version,commit} 1. Call after Init.
func SetBuildInfo(version, commit string) {
	buildInfo.WithLabelValues(version, commit).Set(1)
}
