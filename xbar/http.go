package xbar

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/crossbar-lab/xbar/codec"
	"github.com/crossbar-lab/xbar/generichttp"
	"github.com/crossbar-lab/xbar/supply"
	"github.com/crossbar-lab/xbar/waveform"
)

// codesBody is the JSON body of set, reset and form requests
type codesBody struct {
	Codes [][]codec.Code  `json:"codes"`
	Bias  []supply.Target `json:"bias,omitempty"`
}

// fillBody is the JSON body of fill requests
type fillBody struct {
	Values [][]codec.Value `json:"values"`
	OTP    bool            `json:"otp"`
	Bias   []supply.Target `json:"bias,omitempty"`
}

// senseResponse is returned by the sense route.  Contradictory lists cells
// that read 0b11; Codes is still populated when it is non-empty.
// codes are ints so they do not encode as base64 byte strings
type senseResponse struct {
	Codes         [][]int `json:"codes"`
	Contradictory []Cell  `json:"contradictory,omitempty"`
}

func codesToInts(codes [][]codec.Code) [][]int {
	out := make([][]int, len(codes))
	for r, row := range codes {
		out[r] = make([]int, len(row))
		for c, code := range row {
			out[r][c] = int(code)
		}
	}
	return out
}

// HTTPWrapper exposes a Driver over HTTP
type HTTPWrapper struct {
	// Driver is the underlying crossbar driver
	Driver *Driver

	// RouteTable maps URLs to functions
	RouteTable generichttp.RouteTable
}

// NewHTTPWrapper returns a new HTTP wrapper with the route table pre-configured
func NewHTTPWrapper(d *Driver) HTTPWrapper {
	w := HTTPWrapper{Driver: d}
	rt := generichttp.RouteTable{}
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/set"}] = w.sequence(FamilySet)
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/reset"}] = w.sequence(FamilyReset)
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/form"}] = w.sequence(FamilyForm)
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/fill"}] = w.Fill
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/sense"}] = w.Sense
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/bias"}] = w.Bias

	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/timing"}] = w.GetTiming
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/timing"}] = w.SetTiming
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/timing/interval"}] = generichttp.GetFloat(func() (float64, error) {
		t, err := d.Timing()
		return t.Interval, err
	})
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/timing/interval"}] = generichttp.SetFloat(func(f float64) error {
		t, err := d.Timing()
		if err != nil {
			return err
		}
		t.Interval = f
		return d.SetTiming(t)
	})

	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/measurements"}] = w.Measurements
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/waveforms"}] = w.Waveforms
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/reset-state"}] = generichttp.Trigger(d.ResetState)
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/carac"}] = generichttp.GetBool(func() (bool, error) {
		return d.Carac(), nil
	})
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/carac"}] = generichttp.SetBool(d.EnableCarac)
	w.RouteTable = rt
	return w
}

// RT satisfies generichttp.HTTPer
func (h HTTPWrapper) RT() generichttp.RouteTable {
	return h.RouteTable
}

// status maps driver errors to HTTP status codes
func status(err error) int {
	switch {
	case errors.Is(err, codec.ErrShape), errors.Is(err, codec.ErrInvalidValue),
		errors.Is(err, waveform.ErrInvalidParameters):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotConfigured):
		return http.StatusConflict
	case errors.Is(err, supply.ErrSettleTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrDeviceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h HTTPWrapper) sequence(f Family) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := codesBody{}
		err := json.NewDecoder(r.Body).Decode(&body)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err = h.Driver.Sequence(f, body.Codes, body.Bias); err != nil {
			http.Error(w, err.Error(), status(err))
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// Fill programs the array from logical values, {"values": [[...]], "otp": false}
func (h HTTPWrapper) Fill(w http.ResponseWriter, r *http.Request) {
	body := fillBody{}
	err := json.NewDecoder(r.Body).Decode(&body)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err = h.Driver.Fill(body.Values, body.OTP, body.Bias); err != nil {
		http.Error(w, err.Error(), status(err))
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Bias drives the supply rails, [{"channel": 1, "volts": 2.5}]
func (h HTTPWrapper) Bias(w http.ResponseWriter, r *http.Request) {
	var targets []supply.Target
	err := json.NewDecoder(r.Body).Decode(&targets)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err = h.Driver.Bias(targets); err != nil {
		http.Error(w, err.Error(), status(err))
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Sense reads the array.  Query parameters: mode=dual|uc (default dual),
// measure=true|false (default false)
func (h HTTPWrapper) Sense(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := DualInstrument
	switch q.Get("mode") {
	case "", "dual":
	case "uc":
		mode = MicrocontrollerOnly
	default:
		http.Error(w, "mode must be dual or uc", http.StatusBadRequest)
		return
	}
	measure := false
	if s := q.Get("measure"); s != "" {
		var err error
		if measure, err = strconv.ParseBool(s); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	codes, err := h.Driver.Sense(mode, measure)
	resp := senseResponse{Codes: codesToInts(codes)}
	var cre *ContradictoryReadError
	if errors.As(err, &cre) {
		resp.Contradictory = cre.Cells
	} else if err != nil {
		http.Error(w, err.Error(), status(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// GetTiming returns the configured timing as JSON
func (h HTTPWrapper) GetTiming(w http.ResponseWriter, r *http.Request) {
	t, err := h.Driver.Timing()
	if err != nil {
		http.Error(w, err.Error(), status(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(t); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// SetTiming replaces the timing with the JSON body
func (h HTTPWrapper) SetTiming(w http.ResponseWriter, r *http.Request) {
	t := Timing{}
	err := json.NewDecoder(r.Body).Decode(&t)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err = h.Driver.SetTiming(t); err != nil {
		http.Error(w, err.Error(), status(err))
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Measurements returns the captures of the last measured sense.  With
// ?channel=<name> a single channel is returned as CSV
func (h HTTPWrapper) Measurements(w http.ResponseWriter, r *http.Request) {
	recs, err := h.Driver.Measurements()
	if err != nil {
		http.Error(w, err.Error(), status(err))
		return
	}
	if name := r.URL.Query().Get("channel"); name != "" {
		for _, rec := range recs {
			if rec.Name == name {
				w.Header().Set("Content-Type", "text/csv")
				if err := rec.EncodeCSV(w); err != nil {
					http.Error(w, err.Error(), http.StatusInternalServerError)
				}
				return
			}
		}
		http.Error(w, "no measurement for channel "+name, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(recs); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Waveforms returns the ramp vectors of the waveform set on the instrument
func (h HTTPWrapper) Waveforms(w http.ResponseWriter, r *http.Request) {
	h.Driver.mu.Lock()
	cfg, set, ok := h.Driver.cache.Current()
	h.Driver.mu.Unlock()
	if !ok {
		http.Error(w, "no waveforms uploaded", http.StatusNotFound)
		return
	}
	type channel struct {
		Name    string            `json:"name"`
		Repeats int               `json:"repeats"`
		Lead    float64           `json:"lead"`
		Trail   float64           `json:"trail"`
		Pattern []waveform.Vector `json:"pattern"`
	}
	out := struct {
		Family   string    `json:"family"`
		Channels []channel `json:"channels"`
	}{Family: cfg.Family.String()}
	for i, wf := range set {
		out.Channels = append(out.Channels, channel{
			Name:    channelName(i + 1),
			Repeats: wf.Repeats(),
			Lead:    wf.Lead(),
			Trail:   wf.Trail(),
			Pattern: wf.Pattern()})
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
