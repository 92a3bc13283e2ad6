package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(GinMiddleware())
	router.GET("/attempts/:id", func(c *gin.Context) {
		_, span := StartSpan(c.Request.Context(), "attempt.review")
		EndSpan(span, errors.New("boom"))
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/attempts/1", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	spans := recorder.Ended()
	if assert.Len(t, spans, 2) {
		assert.Equal(t, "attempt.review", spans[0].Name())
		assert.Equal(t, "GET /attempts/:id", spans[1].Name())
		assert.Equal(t, spans[1].SpanContext().TraceID(), spans[0].SpanContext().TraceID())
	}

	assert.NoError(t, tp.Shutdown(context.Background()))
}
