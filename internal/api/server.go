// Package api exposes the quantisation engine over HTTP: quantise an
// in-memory tensor set, dequantise a packed entry, and audit the selection
// policy. Models stay in request scope; nothing is persisted server-side.
package api

import (
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/blockquant/internal/logger"
	"github.com/samcharles93/blockquant/internal/store"
	"github.com/samcharles93/blockquant/pkg/blockquant"
)

type Server struct {
	policy blockquant.Policy
	log    logger.Logger
}

func NewServer(policy blockquant.Policy, log logger.Logger) *Server {
	if policy == nil {
		policy = blockquant.DefaultPolicy()
	}
	if log == nil {
		log = logger.Default()
	}
	return &Server{policy: policy, log: log}
}

func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/quantize", s.handleQuantize)
	e.POST("/v1/dequantize", s.handleDequantize)
	e.GET("/v1/policy", s.handlePolicy)
}

func (s *Server) handleQuantize(c *echo.Context) error {
	req, err := decodeJSON[QuantizeRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if len(req.Tensors) == 0 {
		return writeBadRequest(c, "tensors must not be empty")
	}

	cfg := blockquant.DefaultConfig()
	if req.Bits != 0 {
		cfg.Bits = req.Bits
	}
	if req.BlockSize != 0 {
		cfg.BlockSize = req.BlockSize
	}
	if err := cfg.Validate(); err != nil {
		return writeBadRequest(c, err.Error())
	}

	in := store.NewModel()
	for _, t := range req.Tensors {
		if t.Name == "" {
			return writeBadRequest(c, "tensor name must not be empty")
		}
		in.SetTensor(blockquant.Tensor{Name: t.Name, Shape: t.Shape, Data: t.Data})
	}

	out := store.NewModel()
	stats, err := blockquant.QuantiseModel(c.Request().Context(), in, out, cfg, s.policy, nil)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	id := "quant-" + uuid.NewString()
	s.log.Info("quantised tensor set",
		"id", id,
		"tensors", stats.TotalTensors,
		"quantised", stats.QuantisedTensors,
		"ratio", fmt.Sprintf("%.2f", stats.CompressionRatio()),
	)

	entries := out.Entries()
	resp := QuantizeResponse{
		ID:        id,
		Bits:      cfg.Bits,
		BlockSize: cfg.BlockSize,
		Stats:     statsPayload(stats),
		Entries:   make([]EntryPayload, 0, len(entries)),
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, EntryPayload{
			Name:  e.Name,
			DType: string(e.DType),
			Shape: e.Shape,
			Data:  base64.StdEncoding.EncodeToString(e.Data),
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDequantize(c *echo.Context) error {
	req, err := decodeJSON[DequantizeRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	raw, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return writeBadRequest(c, fmt.Sprintf("data: %v", err))
	}
	data, err := blockquant.Dequantise(blockquant.QuantTensor{
		Bits:      req.Bits,
		BlockSize: req.BlockSize,
		Shape:     req.Shape,
		Scales:    req.Scales,
		Data:      raw,
	})
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	return c.JSON(http.StatusOK, DequantizeResponse{Name: req.Name, Shape: req.Shape, Data: data})
}

func (s *Server) handlePolicy(c *echo.Context) error {
	resp := PolicyResponse{Rules: make([]RulePayload, 0, len(s.policy))}
	for _, r := range s.policy {
		resp.Rules = append(resp.Rules, RulePayload{
			Name:        r.Name,
			MaxElements: r.MaxElements,
			MinElements: r.MinElements,
			Contains:    r.Contains,
			Action:      r.Action.String(),
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func statsPayload(s blockquant.Stats) StatsPayload {
	return StatsPayload{
		TotalTensors:     s.TotalTensors,
		QuantisedTensors: s.QuantisedTensors,
		KeptTensors:      s.KeptTensors,
		OriginalBytes:    s.OriginalBytes,
		PackedBytes:      s.PackedBytes,
		ScaleBytes:       s.ScaleBytes,
		KeptBytes:        s.KeptBytes,
		CompressionRatio: s.CompressionRatio(),
	}
}
