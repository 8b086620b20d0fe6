package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck обработчик для проверки работоспособности сервиса
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "OK",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// Pinger проверка доступности зависимости
type Pinger func(ctx context.Context) error

// ReadinessCheck проверяет зависимости сервиса (база данных, кеш)
func ReadinessCheck(checks map[string]Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, ping := range checks {
			if err := ping(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "OK"
		}

		c.JSON(status, gin.H{
			"status":       http.StatusText(status),
			"dependencies": results,
			"time":         time.Now().Format(time.RFC3339),
		})
	}
}
