// Package tagsync maps classifications onto Sonarr/Radarr tag labels and
// reconciles them against remote state.
//
// Reconcile is pure: given a classification and a RemoteTagState snapshot it
// returns the ordered CreateTag/AttachTag/DetachTag sequence for one item.
// Only labels in the managed namespace are ever detached. Planner reads the
// snapshot through the Arr client, and Executor applies plans with bounded
// concurrency, stopping an item at its first failed operation.
package tagsync
