package command

import "strings"

// Command names.
const (
	CommandStart           = "start"
	CommandAdd             = "add"
	CommandGet             = "get"
	CommandDelete          = "delete"
	CommandList            = "list"
	CommandListUpcoming    = "listupcoming"
	CommandSetReminderHour = "setreminderhour"
)

// Legacy aliases.
var aliases = map[string]string{
	"set":       CommandAdd,
	"query":     CommandGet,
	"query_all": CommandList,
}

// Description documents a command for the help text and the chat menu.
type Description struct {
	Name        string
	Usage       string
	Description string
}

// Descriptions lists the public commands in menu order.
var Descriptions = []Description{
	{Name: CommandStart, Usage: "start", Description: "Start the bot"},
	{Name: CommandAdd, Usage: "add <name> <dd/mm(/yyyy)>", Description: "Add a birthday to your list in the format <name> <dd/mm(/yyyy)>"},
	{Name: CommandGet, Usage: "get <name>", Description: "Get a birthday from your list by <name>"},
	{Name: CommandDelete, Usage: "delete <name>", Description: "Delete a birthday from your list by <name>"},
	{Name: CommandList, Usage: "list", Description: "List all your birthdays"},
	{Name: CommandListUpcoming, Usage: "listupcoming (<n>)", Description: "List all upcoming birthdays up to <n> days from now. Default is 14 days"},
	{Name: CommandSetReminderHour, Usage: "setreminderhour <hour>", Description: "Set <hour> for the reminder hour of the day (in UTC)"},
}

// HelpText is the reply to /start.
func HelpText() string {
	var b strings.Builder
	b.WriteString("I can help you remember birthdays.\n")
	b.WriteString("You can use the following commands to interact with me:\n\n")
	for _, d := range Descriptions {
		b.WriteString("/" + d.Usage + " - " + d.Description + "\n")
	}
	return b.String()
}
