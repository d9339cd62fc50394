// Package workspace assembles the FlareOS domains of one device.
//
// A Workspace owns one local cache, one device identity and, when a backend
// is configured, one remote client. Each domain (chats, memory, vault,
// document, agents) is a localfirst.Store over that shared plumbing with the
// domain rules layered on top: thread titles and echo replies, memory
// timestamps, the provider list, the starter document and agent cloning.
//
// Legacy cache blobs written by the browser client are read unchanged; see
// codecs.go for the vault and document formats.
//
// Agents never leave the device.
package workspace
