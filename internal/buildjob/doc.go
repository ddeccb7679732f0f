// Package buildjob renders the batch workloads that run builds.
//
// Every declared project maps to one CronJob in the build namespace. The
// CronJob is named after the project, labelled with the owning CForge, and
// runs the builder image with the project name and repository URL as its two
// arguments. One-off runs are Jobs instantiated from that CronJob's
// jobTemplate, the same way `kubectl create job --from=cronjob/...` does.
//
// DefinitionFromCronJob goes the other way: it extracts the fields the
// reconciler compares (schedule, repository URL, suspension, owner) from a
// live CronJob.
package buildjob
