// Package events groups the in-process event delivery packages.
//
// The eventbus subpackage provides topic-keyed publish/subscribe with
// synchronous, ordered delivery and contained handler failures.
package events
