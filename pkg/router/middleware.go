package router

import (
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// Middleware envuelve un handler de fasthttp
type Middleware func(fasthttp.RequestHandler) fasthttp.RequestHandler

// Chain aplica los middlewares en orden: el primero queda por fuera
func Chain(h fasthttp.RequestHandler, middlewares ...Middleware) fasthttp.RequestHandler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// RequestLogger registra cada petición con zap según su código de estado
func RequestLogger(log *zap.Logger) Middleware {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			start := time.Now()

			next(ctx)

			status := ctx.Response.StatusCode()
			fields := []zap.Field{
				zap.String("method", string(ctx.Method())),
				zap.String("path", string(ctx.Path())),
				zap.Int("status", status),
				zap.Duration("latency", time.Since(start)),
				zap.String("client_ip", ctx.RemoteIP().String()),
			}

			switch {
			case status >= 500:
				log.Error("Server error", fields...)
			case status >= 400:
				log.Warn("Client error", fields...)
			default:
				log.Debug("Request processed", fields...)
			}
		}
	}
}

// CORS agrega las cabeceras CORS y responde los preflight
func CORS(allowedOrigin string) Middleware {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			ctx.Response.Header.Set("Access-Control-Allow-Origin", allowedOrigin)
			ctx.Response.Header.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			ctx.Response.Header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Session-ID")
			ctx.Response.Header.Set("Access-Control-Expose-Headers", "X-Session-ID")
			if allowedOrigin != "*" {
				ctx.Response.Header.Set("Access-Control-Allow-Credentials", "true")
				ctx.Response.Header.Set("Vary", "Origin")
			}

			if ctx.IsOptions() {
				ctx.SetStatusCode(fasthttp.StatusNoContent)
				return
			}
			next(ctx)
		}
	}
}

// Recover convierte un panic del handler en un 500
func Recover(log *zap.Logger) Middleware {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("Panic en handler",
						zap.String("path", string(ctx.Path())),
						zap.String("panic", fmt.Sprint(r)),
						zap.Stack("stack"),
					)
					ctx.ResetBody()
					ctx.Response.Header.Set("Content-Type", "application/json")
					ctx.SetStatusCode(fasthttp.StatusInternalServerError)
					ctx.SetBodyString(`{"success": false, "error": "Error interno del servidor"}`)
				}
			}()
			next(ctx)
		}
	}
}
