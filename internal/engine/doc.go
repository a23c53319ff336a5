// Package engine runs plans. The Executor drives one execution through a
// plan's steps, resolving references, evaluating conditions, invoking the
// capability port, and applying each step's error policy. The Engine facade
// ties the Executor to the plan store, the trigger manager, and the
// execution log, and exposes the plan authoring and execution query APIs
package engine
