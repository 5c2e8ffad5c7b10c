// Package files manages document metadata and payloads.
//
// Metadata rows live in the files table; payloads live in a blob.Store under
// the key recorded in file_name. Uploads are accepted as multipart forms and
// classified by MIME type. Every read path is filtered through the caller's
// visibility scope, so a USER only ever sees files granted to one of their
// groups.
package files
