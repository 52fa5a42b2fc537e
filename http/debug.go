package http

import (
	"net/http"

	"github.com/aukilabs/flocktree/simulation"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/segmentio/encoding/json"
)

// FrameSource provides the last published debug frame.
type FrameSource interface {
	Snapshot() *simulation.DebugFrame
}

// HandleDebugTree writes the last debug frame as JSON. It responds with 404
// when no frame was published, which is the case when visualization is
// disabled.
//
// The summary=true query parameter strips the agents and the leaves.
func HandleDebugTree(source FrameSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		frame := source.Snapshot()
		if frame == nil {
			http.Error(w, "no debug frame published", http.StatusNotFound)
			return
		}

		if r.URL.Query().Get("summary") == "true" {
			frame = frame.Summary()
		}

		b, err := json.Marshal(frame)
		if err != nil {
			logs.Error(errors.New("encoding debug frame failed").
				WithTag("sequence", frame.Sequence).
				Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(b)
	}
}
