// Package bot glues clientquery, guildapi, activitylog, registry and
// tsclient into the running TeamSpeak bot. The core is a four-session
// dispatch design:
//
//   - the event session feeds a dispatcher loop that deduplicates and
//     routes notifications (chat commands to the work queue, presence
//     changes straight to the activity log);
//   - the worker session drains a single FIFO work queue of heterogeneous
//     tasks (chat commands, poke flushes, reference refreshes, channel
//     sweeps);
//   - the reference session serves client/channel snapshot refreshes;
//   - the general session carries one-time init and escalates to a client
//     process restart when the query port refuses connections.
//
// Each session has its own reconnect supervision so a blocked event wait
// never starves command execution. Scheduling is wall-clock polling at 1s
// granularity; pending pokes are retried at-least-once for up to 24h.
//
// Lifecycle:
//   - Create via New(settings).
//   - Wire collaborators: SetProcessManager, SetGuildClient,
//     SetActivityHook.
//   - Start() spawns the loops; Stop() signals them and joins with a
//     short timeout.
package bot
