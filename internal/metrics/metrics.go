// Package metrics registers the viewer's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeError   = "error"
)

var (
	// PlaylistLoads counts applied playlist loads by source kind and outcome.
	PlaylistLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matrixiptv_playlist_loads_total",
		Help: "Total number of applied playlist loads by source and outcome",
	}, []string{"source", "outcome"})

	// StaleDiscards counts load or guide results dropped because a newer request superseded them.
	StaleDiscards = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matrixiptv_stale_results_discarded_total",
		Help: "Total number of superseded results discarded",
	}, []string{"kind"})

	// EPGLoads counts applied guide loads by outcome.
	EPGLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matrixiptv_epg_loads_total",
		Help: "Total number of applied EPG loads by outcome",
	}, []string{"outcome"})

	// ChannelsLoaded is the channel count of the current playlist.
	ChannelsLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "matrixiptv_channels_loaded",
		Help: "Number of channels in the currently loaded playlist",
	})

	// EPGChannels is the number of guide channels with at least one programme.
	EPGChannels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "matrixiptv_epg_channels",
		Help: "Number of channels present in the loaded EPG",
	})

	// PlaybackDispatches counts playback hand-offs by target and result.
	PlaybackDispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matrixiptv_playback_dispatches_total",
		Help: "Total number of playback dispatches by target and result",
	}, []string{"target", "result"})
)

// RecordPlaylistLoad increments the playlist load counter.
func RecordPlaylistLoad(source, outcome string) {
	PlaylistLoads.WithLabelValues(source, outcome).Inc()
}

// RecordStaleDiscard increments the discard counter; kind is "playlist" or "epg".
func RecordStaleDiscard(kind string) {
	StaleDiscards.WithLabelValues(kind).Inc()
}

// RecordEPGLoad increments the EPG counter and, on success, updates the channel gauge.
func RecordEPGLoad(outcome string, channels int) {
	EPGLoads.WithLabelValues(outcome).Inc()
	if outcome == OutcomeSuccess {
		EPGChannels.Set(float64(channels))
	}
}

// SetChannelsLoaded updates the loaded channel gauge.
func SetChannelsLoaded(n int) {
	ChannelsLoaded.Set(float64(n))
}

// RecordPlayback increments the dispatch counter.
func RecordPlayback(target string, err error) {
	result := OutcomeSuccess
	if err != nil {
		result = OutcomeError
	}
	PlaybackDispatches.WithLabelValues(target, result).Inc()
}
