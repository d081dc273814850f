package lkportal

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/livekit/protocol/logger"
	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"

	"github.com/dmisol/lkportal/defs"
)

// Panel drives a portal over http and polls it once per Tick.
// A portal is single-use, so a new one is started after a leave.
type Panel struct {
	ctx    context.Context
	params Params
	logger logger.Logger

	mu     sync.Mutex
	portal *Portal
}

func NewPanel(ctx context.Context, params Params) (pn *Panel, err error) {
	pn = &Panel{
		ctx:    ctx,
		params: params,
		logger: params.Logger,
	}
	if pn.logger == nil {
		pn.logger = logger.GetLogger()
	}
	if pn.portal, err = NewPortal(ctx, params); err != nil {
		return nil, err
	}
	return
}

// Portal returns the live portal, starting a fresh one if the last has finished.
func (pn *Panel) Portal() (*Portal, error) {
	pn.mu.Lock()
	defer pn.mu.Unlock()

	select {
	case <-pn.portal.Done():
		p, err := NewPortal(pn.ctx, pn.params)
		if err != nil {
			return nil, err
		}
		pn.logger.Infow("portal renewed")
		pn.portal = p
	default:
	}
	return pn.portal, nil
}

func (pn *Panel) Close() {
	pn.mu.Lock()
	p := pn.portal
	pn.mu.Unlock()
	p.Close()
}

// Tick takes at most one event and one result, like a frame update would.
func (pn *Panel) Tick() {
	pn.mu.Lock()
	p := pn.portal
	pn.mu.Unlock()

	if ev, ok := p.Poll(); ok {
		pn.logger.Infow("room event", "kind", ev.Kind, "participant", ev.Participant, "track", ev.TrackName)
	}
	if res, ok := p.PollResult(); ok {
		if res.Err != nil {
			pn.logger.Warnw("action failed", res.Err, "action", res.Action.String())
		} else {
			pn.logger.Debugw("action done", "action", res.Action.String())
		}
	}
}

type panelState struct {
	defs.Status
	Reason  string   `json:"reason,omitempty"`
	Session string   `json:"session,omitempty"`
	Tracks  []string `json:"tracks"`
}

// /connect?room=xxx&user=yyy
// /leave
// /publish?name=xxx, /unpublish?name=xxx
// /reset, /state, /event
func (pn *Panel) Handler(r *fasthttp.RequestCtx) {
	p, err := pn.Portal()
	if err != nil {
		r.Error(err.Error(), fasthttp.StatusInternalServerError)
		return
	}

	switch string(r.Path()) {
	case "/connect":
		pn.queued(r, p.CreateRoom(string(r.FormValue("room")), string(r.FormValue("user"))))
	case "/leave":
		pn.queued(r, p.Leave(string(r.FormValue("room")), string(r.FormValue("user"))))
	case "/publish", "/unpublish":
		name := string(r.FormValue("name"))
		if name == "" {
			r.Error("no name", fasthttp.StatusBadRequest)
			return
		}
		if string(r.Path()) == "/publish" {
			pn.queued(r, p.PublishVideoTrack(name))
		} else {
			pn.queued(r, p.UnpublishVideoTrack(name))
		}
	case "/reset":
		pn.queued(r, p.Reset())
	case "/state":
		st := p.Status()
		tracks := p.Tracks()
		if tracks == nil {
			tracks = []string{}
		}
		pn.json(r, panelState{
			Status:  st,
			Reason:  st.Reason(),
			Session: p.SessionName(),
			Tracks:  tracks,
		})
	case "/event":
		ev, ok := p.Poll()
		if !ok {
			r.SetStatusCode(fasthttp.StatusNoContent)
			return
		}
		pn.json(r, ev)
	default:
		r.Error("not found", fasthttp.StatusNotFound)
	}
}

func (pn *Panel) queued(r *fasthttp.RequestCtx, err error) {
	switch {
	case err == nil:
		r.SetStatusCode(fasthttp.StatusAccepted)
	case errors.Is(err, defs.ErrBusy):
		r.Error(err.Error(), fasthttp.StatusTooManyRequests)
	case errors.Is(err, defs.ErrClosed):
		r.Error(err.Error(), fasthttp.StatusServiceUnavailable)
	default:
		r.Error(err.Error(), fasthttp.StatusInternalServerError)
	}
}

func (pn *Panel) json(r *fasthttp.RequestCtx, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		pn.logger.Errorw("marshal", err)
		r.Error("marshal", fasthttp.StatusInternalServerError)
		return
	}
	r.SetContentType("application/json")
	r.SetBody(b)
}
