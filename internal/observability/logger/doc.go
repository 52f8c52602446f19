// Package logger expone un logger Zap único con scoping por contexto.
//
// El singleton se inicializa una vez en main con Init. Cada request recibe un
// logger derivado (request_id, method, path, user_id) que el middleware de
// logging inyecta en el contexto; servicios y stores lo recuperan con From(ctx)
// y caen al singleton cuando no hay logger en el contexto.
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
//	defer logger.Sync()
//
//	log := logger.From(ctx).With(logger.Component("flow.engine"))
//	log.Info("flow completed", logger.Provider("google"))
package logger
