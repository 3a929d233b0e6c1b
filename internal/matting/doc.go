// Package matting maps the configured background removal mode onto concrete
// providers. Modes that only change how an image is blended at render time
// (css-blend, checkerboard-remove) and none skip processing entirely; auto is
// an ordered chain of the remote API followed by the local tool.
package matting
