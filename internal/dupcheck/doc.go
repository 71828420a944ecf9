// Package dupcheck decides whether a discovered video is a re-upload of
// something already published on the target platform. It combines a title
// translation, a search-page lookup, and a language-model verdict, failing
// open when any of the three is unavailable.
package dupcheck
