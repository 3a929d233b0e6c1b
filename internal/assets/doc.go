// Package assets resolves media references and stores generated media.
//
// A reference is an http(s) URL, a data: URL, a file:// URL, or a plain path.
// Providers hand back URLs while local tools (ffmpeg, the matting command)
// need files, so the store can fetch any reference into bytes, localize it
// into a file, and save new bytes under a uuid name.
package assets
