// Package server provides HTTP routing, middleware and the local upload receiver.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// Middleware added with [BasicRouter.Use] only applies to routes registered afterwards, which lets /health
// stay outside the authenticated group.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method-qualified patterns.
//
// # Receiver
//
// [ReceiverHandler] implements the two upload endpoints albumdrop posts to:
//   - POST /upload/cover : form field "cover"
//   - POST /upload/audio : form field "audio"
//
// Each request must carry exactly the route's field; the part is streamed to disk under
// storage_dir/<field>/<uuid><ext> and answered with 201 and a JSON [StoredFile]. The declared part
// Content-Type is kept unless it is missing or generic, in which case it is sniffed from the first bytes.
//
// # Middleware
//
//   - [Logging] : one log line per request with status and elapsed time
//   - [RequireBearer] : 401 unless Authorization carries the configured token
//   - [LimitBody] : 413 when the body exceeds the configured size
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
