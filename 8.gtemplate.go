package main

import (
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
)

// ===========================
// Command Registration
// ===========================

func init() {
	RegisterCommand(discord.SlashCommandCreate{
		Name:        "gtemplate",
		Description: "Configure the giveaway message template of this server",
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "set",
				Description: "Set the giveaway template",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:        "title",
						Description: "Template title ({prize}, {server_name}, ...)",
						Required:    true,
					},
					discord.ApplicationCommandOptionString{
						Name:        "description",
						Description: "Template body ({host(mention)}, {num_winners}, {ends}, {time_left}, ...)",
						Required:    true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "reset",
				Description: "Reset the giveaway template to the default",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "show",
				Description: "Show the current giveaway template",
			},
		},
	}, handleGtemplate)
}

// ===========================
// Command Handlers
// ===========================

// templateRespond sends an ephemeral response message
func templateRespond(event *events.ApplicationCommandInteractionCreate, content string) {
	err := event.CreateMessage(discord.NewMessageCreateBuilder().
		SetIsComponentsV2(true).
		AddComponents(
			discord.NewContainer(
				discord.NewTextDisplay(content),
			),
		).
		SetEphemeral(true).
		Build())
	if err != nil {
		LogGiveaway("Failed to respond to interaction: %v", err)
	}
}

// handleGtemplate routes gtemplate subcommands to their respective handlers
func handleGtemplate(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()
	subCmd := data.SubCommandName
	if subCmd == nil {
		return
	}

	guildID := event.GuildID()
	if guildID == nil {
		templateRespond(event, ErrTemplateGuildOnly)
		return
	}
	if !canManageGiveaways(event) {
		templateRespond(event, ErrGiveawayNoPermission)
		return
	}

	switch *subCmd {
	case "set":
		t := &GiveawayTemplate{
			GuildID:     *guildID,
			Title:       data.String("title"),
			Description: data.String("description"),
		}
		if err := SetGuildTemplate(AppContext, t); err != nil {
			LogGiveaway("Failed to save template: %v", err)
			templateRespond(event, ErrTemplateSaveFailed)
			return
		}
		templateRespond(event, MsgTemplateSet)

	case "reset":
		if err := DeleteGuildTemplate(AppContext, *guildID); err != nil {
			LogGiveaway("Failed to reset template: %v", err)
			templateRespond(event, ErrTemplateSaveFailed)
			return
		}
		templateRespond(event, MsgTemplateReset)

	case "show":
		t, err := GetGuildTemplate(AppContext, *guildID)
		if err != nil {
			templateRespond(event, ErrTemplateSaveFailed)
			return
		}
		if t == nil {
			templateRespond(event, fmt.Sprintf("%s\n\nTitle: `%s`\nDescription:\n```\n%s\n```",
				MsgTemplateNone, defaultGiveawayTitle, defaultGiveawayDescription))
			return
		}
		templateRespond(event, fmt.Sprintf("**Giveaway Template**\n\nTitle: `%s`\nDescription:\n```\n%s\n```",
			Truncate(t.Title, 200), Truncate(t.Description, 1500)))
	}
}
