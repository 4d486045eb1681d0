package models

// Countries is the destination list offered by the quote form.
var Countries = []string{
	"Австралия", "Австрия", "Азербайджан", "Албания", "Алжир", "Ангола",
	"Аргентина", "Армения", "Беларусь", "Бельгия", "Болгария", "Бразилия",
	"Великобритания", "Венгрия", "Вьетнам", "Германия", "Греция", "Грузия",
	"Дания", "Египет", "Израиль", "Индия", "Индонезия", "Иран", "Ирландия",
	"Исландия", "Испания", "Италия", "Казахстан", "Канада", "Кипр", "Китай",
	"Колумбия", "Куба", "Латвия", "Литва", "Люксембург", "Малайзия", "Мальта",
	"Марокко", "Мексика", "Нидерланды", "Новая Зеландия", "Норвегия", "ОАЭ",
	"Польша", "Португалия", "Россия", "Румыния", "Сербия", "Сингапур",
	"Словакия", "Словения", "США", "Таиланд", "Турция", "Украина", "Финляндия",
	"Франция", "Хорватия", "Черногория", "Чехия", "Чили", "Швейцария", "Швеция",
	"Эстония", "Южная Корея", "Япония",
}
