// Package crawler holds the fetch contract shared by the static and headless
// fetchers and the components that consume them.
package crawler
