package core

type ctxKey string

const (
	CtxKeyActorID   ctxKey = ctxKey("actorId")
	CtxKeyActorName ctxKey = ctxKey("actorName")
)
