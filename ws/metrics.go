package ws

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crashd_ws_frames_dropped_total",
		Help: "Frames dropped because a client's send buffer was full.",
	})
	clientsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crashd_ws_clients_connected",
		Help: "Currently connected websocket clients.",
	})
)
