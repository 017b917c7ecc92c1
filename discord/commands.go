package discord

// Commands is the slash command surface registered in the guild.
var Commands = []ApplicationCommand{
	{
		Name:        "create-team",
		Description: "Create a team and become its captain",
		Options: []ApplicationCommandOption{
			{Type: OptionString, Name: "name", Description: "Team name", Required: true},
			{Type: OptionString, Name: "tag", Description: "Short team tag", Required: true},
			{Type: OptionString, Name: "picture", Description: "Team picture URL", Required: true},
			{Type: OptionString, Name: "description", Description: "Team description", Required: true},
		},
	},
	{
		Name:        "invite",
		Description: "Invite a player to your team",
		Options: []ApplicationCommandOption{
			{Type: OptionUser, Name: "player", Description: "Player to invite", Required: true},
		},
	},
	{
		Name:        "manage-team",
		Description: "Show your team",
	},
	{
		Name:        "kick",
		Description: "Remove a member from your team",
		Options: []ApplicationCommandOption{
			{Type: OptionUser, Name: "user", Description: "Member to remove", Required: true},
		},
	},
}
