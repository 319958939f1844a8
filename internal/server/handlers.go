package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/trufnetwork/waterjudge/internal/attest"
	"github.com/trufnetwork/waterjudge/internal/judge"
)

type infoResponse struct {
	Service      string `json:"service"`
	Version      string `json:"version"`
	JudgeAddress string `json:"judge_address"`
	SchemeID     string `json:"scheme_id"`
	Description  string `json:"description"`
}

func (s *Server) handleInfo(c *gin.Context) {
	c.JSON(http.StatusOK, infoResponse{
		Service:      "Water Judge API",
		Version:      Version,
		JudgeAddress: s.signer.Address(),
		SchemeID:     attest.SchemeV1,
		Description:  "Water quality analysis with signed attestations",
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.signer.Address() == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "signing key unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleJudge accepts a water sample, produces a decision, and returns the
// signed attestation bundle. Either a complete bundle comes back or an error
// status; no partial bundle ever leaves the handler.
func (s *Server) handleJudge(c *gin.Context) {
	var sample judge.Sample
	if err := c.ShouldBindJSON(&sample); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout)
	defer cancel()

	decision, err := s.producer.Produce(ctx, &sample)
	if err != nil {
		s.failJudge(c, err)
		return
	}

	bundle, err := s.attestor.Attest(decision)
	if err != nil {
		s.failJudge(c, err)
		return
	}

	s.recorder.RecordAttestationIssued(ctx)
	c.JSON(http.StatusOK, bundle)
}

func (s *Server) failJudge(c *gin.Context, err error) {
	ctx := c.Request.Context()
	switch {
	case errors.Is(err, attest.ErrInvalidDecision):
		s.recorder.RecordAttestationRejected(ctx, "invalid_decision")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, attest.ErrKeyUnavailable):
		s.recorder.RecordAttestationRejected(ctx, "key_unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "signing key unavailable"})
	default:
		s.recorder.RecordAttestationRejected(ctx, "internal")
		s.logger.Error("judgment failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "judgment failed"})
	}
}

type verifyResponse struct {
	Result attest.VerificationResult `json:"result"`
	Signer string                    `json:"signer,omitempty"`
	Detail string                    `json:"detail,omitempty"`
}

// handleVerify checks a submitted bundle. Every outcome is a 200 with a
// result variant; the transport reserves error statuses for requests that do
// not even parse as a bundle.
func (s *Server) handleVerify(c *gin.Context) {
	var bundle attest.AttestationBundle
	if err := c.ShouldBindJSON(&bundle); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	result, err := s.verifier.Verify(&bundle)
	s.recorder.RecordVerification(c.Request.Context(), string(result))

	resp := verifyResponse{Result: result}
	if result == attest.ResultValid {
		resp.Signer = bundle.Signer
	} else if err != nil {
		resp.Detail = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}
