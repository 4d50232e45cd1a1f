package prompt

// DefaultTemplates 内置模板
func DefaultTemplates() Templates {
	return Templates{
		KindConcept: "Write a concise game concept document: genre, core loop, setting, " +
			"target audience and unique selling points.\nGame idea: {concept}",
		KindWorld: "Describe the game world in detail: geography, history, factions and atmosphere.\n" +
			"Game concept:\n{concept}",
		KindCharacters: "Create the main characters of the game with names, roles, " +
			"personalities, abilities and visual descriptions.\nContext:\n{concept}",
		KindPlot: "Write the main plot of the game in acts, with the inciting incident, " +
			"key turning points and the ending.\nWorld and characters:\n{concept}",
		KindMusic: "Instrumental background music for a video game, loopable, no vocals.\nGame: {concept}",

		ImageKind("character"): "Full-body character concept art on a plain background, game asset style.\n" +
			"Game: {concept}",
		ImageKind("environment"): "Wide environment concept art establishing shot, game background.\nGame: {concept}",
		ImageKind("object"):      "Single game prop or item, centered, isolated on a plain background.\nGame: {concept}",
		ImageKind("texture"):     "Seamless tileable game texture, top-down, even lighting.\nGame: {concept}",
		ImageKind("ui"):          "Game user interface element set: buttons, frames and icons, flat layout.\nGame: {concept}",

		ScriptKind("player_controller"): "Write a player controller script handling movement, " +
			"jumping and input.\nGame: {concept}",
		ScriptKind("enemy_ai"): "Write an enemy AI script with patrol, chase and attack states.\nGame: {concept}",
		ScriptKind("game_manager"): "Write a game manager script that tracks score, lives, " +
			"pause and game over.\nGame: {concept}",
		ScriptKind("inventory_system"): "Write an inventory system script supporting add, remove, " +
			"stacking and capacity.\nGame: {concept}",
		ScriptKind("level_manager"): "Write a level manager script that loads levels, tracks " +
			"checkpoints and handles transitions.\nGame: {concept}",

		ExtraKind("storyline"):    "Write an extended storyline with chapters and side quests.\nGame concept:\n{concept}",
		ExtraKind("dialogue"):     "Write sample dialogue between the main characters.\nGame concept:\n{concept}",
		ExtraKind("mechanics"):    "Describe the core and secondary game mechanics with rules and balancing notes.\nGame concept:\n{concept}",
		ExtraKind("level_design"): "Design three levels with layout, obstacles, enemies and pacing.\nGame concept:\n{concept}",

		ProceduralKind("terrain"): "Write a procedural terrain generation script using noise-based heightmaps.\nGame: {concept}",
		ProceduralKind("dungeon"): "Write a procedural dungeon generator producing connected rooms and corridors.\nGame: {concept}",
		ProceduralKind("loot"):    "Write a procedural loot table generator with rarity tiers and weighted drops.\nGame: {concept}",
		ProceduralKind("quest"):   "Write a procedural quest generator combining objectives, targets and rewards.\nGame: {concept}",
	}
}
