// Package compositor maps a playhead position onto what the video shows and
// paints it.
//
// DeriveVisualState is pure and shared by live playback and recording: the
// active subtitle is the first segment whose closed window contains t, the
// active image is the first whose start lies within ImageDisplayWindow before
// t, and the image enters at 70% of the frame height and settles at 50% after
// EntranceDuration. Painter draws the frame layers in order: background,
// watermark, headers, image, subtitle.
package compositor
