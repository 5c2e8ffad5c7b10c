// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Envelopes
//
// Reads, writes and failures each have a fixed JSON shape:
//
//	httputil.WriteSuccess(w, folders)                      // {"error":null,"data":[...]}
//	httputil.WriteCreated(w, "Folder created successfully") // {"error":null,"message":"..."}
//	httputil.WriteError(w, r, err)                          // {"message":"...","error":"CODE"}
//
// WriteError classifies err with apperr. Unclassified errors are rendered as a
// generic 500 and their cause only reaches the log.
//
// # Request Parsing
//
//	var req createFolderRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return
//	}
//	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
//
// # Middleware
//
//	router.Use(
//		httputil.RequestIDMiddleware(logger),
//		httputil.LoggingMiddleware,
//		httputil.RecoveryMiddleware,
//	)
package httputil
