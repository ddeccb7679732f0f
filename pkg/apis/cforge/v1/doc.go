// Package v1 contains API Schema definitions for the cforge v1 API group.
//
// # API Group: cforge.steni.us/v1
//
// ## CForge
//
// CForge declares the set of projects that should be built on a schedule.
// Every project becomes one CronJob in the build namespace; a project without
// a schedule still gets a (suspended) CronJob so it can be rebuilt on demand.
//
// Example:
//
//	apiVersion: cforge.steni.us/v1
//	kind: CForge
//	metadata:
//	  name: cforge
//	  namespace: cforge
//	spec:
//	  projects:
//	    - name: hello
//	      repo_url: https://github.com/stenius/hello.git
//	      schedule: "0 3 * * *"
//	    - name: tools
//	      repo_url: https://github.com/stenius/tools.git
//
// +kubebuilder:object:generate=true
// +groupName=cforge.steni.us
package v1
