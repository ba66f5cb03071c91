// Package luahook implements hook callables as Lua scripts.
//
// A script defines global functions named after the hook points it handles:
//
//	pattern = "bash*"   -- optional, tool hooks only
//	priority = 5        -- optional
//
//	function tool_execute_before(input)
//	  if json_get(input.args, "command") == "rm -rf /" then
//	    return { action = "abort", reason = "refusing to wipe the disk" }
//	  end
//	  return { set = { timeout = 30 } }
//	end
//
//	function permission_ask(input)
//	  if input.permission == "network_access" then
//	    return { decision = "deny", reason = "offline mode" }
//	  end
//	end
//
// Each function receives the event as a table and returns nil (continue,
// unchanged) or a table. Tool hooks may return args (a JSON string), set (a
// table of JSON paths to values), or output; chat hooks content; session
// start hooks prompt and greeting; permission hooks decision and reason. Any
// hook except permission may return action = "continue", "skip", "abort"
// (with reason) or "replace" (with value).
//
// Scripts run in a state with only the base, table, string and math
// libraries; code loading functions are removed. json_get, json_set and
// log(level, msg) are provided, and print writes to the log. The top-level
// chunk and every hook call are bounded by DefaultCallTimeout unless
// WithCallTimeout says otherwise.
package luahook
