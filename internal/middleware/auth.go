package middleware

import (
	"context"
	"strings"

	"approval-workflow/auth"
	"approval-workflow/internal/domain"
	"approval-workflow/internal/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ActorKey is the gin context key holding the authenticated *domain.Actor.
const ActorKey = "actor"

type ActorProvider interface {
	GetActor(ctx context.Context, id uuid.UUID) (*domain.Actor, error)
}

type Auth struct {
	Actors ActorProvider
}

func (m *Auth) AuthMiddleWare() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		var token string
		tokenQuery := ctx.Query("token")

		if authHeader != "" {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		} else if tokenQuery != "" {
			token = tokenQuery
		} else {
			ctx.Error(errors.Unauthorized("Authorization is not found!", nil))
			ctx.Abort()
			return
		}

		parsedToken, err := auth.VerifyJWT(token)
		if err != nil {
			ctx.Error(errors.Unauthorized("Invalid token!", err))
			ctx.Abort()
			return
		}

		actorID, err := auth.GetDataFromToken(parsedToken)
		if err != nil {
			ctx.Error(errors.Unauthorized("Invalid token!", err))
			ctx.Abort()
			return
		}

		actor, err := m.Actors.GetActor(ctx.Request.Context(), actorID)
		if err != nil {
			ctx.Error(errors.Unauthorized("Unknown actor!", err))
			ctx.Abort()
			return
		}

		ctx.Set(ActorKey, actor)
		ctx.Next()
	}
}
