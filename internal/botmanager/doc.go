// Package botmanager manages the lifecycle of recording agents.
//
// The agent state lives with the recording provider; the manager observes it
// through status polls and records two facts locally: the agent id on the
// calendar event, and a Meeting row once the agent's output was harvested.
//
//	none --Create--> created --ScheduleJoins--> joined/recording --call ends--> ended --CheckCompleted--> Meeting
//
// All three operations are safe to run concurrently with themselves.
// Create checks the event's agent id first, ScheduleJoins checks the agent
// status before joining and CheckCompleted checks for an existing Meeting,
// so overlapping scheduler runs do not create, join or harvest twice.
package botmanager
